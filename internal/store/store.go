// Package store defines the persistence boundary consumed by the engine and
// provides SQLite and in-memory implementations of it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateImport is returned by RecordImport when the
	// (user, source, hash) tuple already exists. It closes the
	// check-then-write race window for concurrent imports of the same
	// content.
	ErrDuplicateImport = errors.New("import record already exists")

	// ErrLinkConsistency is returned when one half of a pair link or
	// unlink could not be applied. Implementations must roll back the
	// half that succeeded before returning it.
	ErrLinkConsistency = errors.New("transfer pair update is not consistent")
)

// TransactionPatch describes a partial update of a ledger transaction.
// Nil fields are left untouched. ExchangeRate is deliberately absent: the
// recorded rate is immutable once written.
type TransactionPatch struct {
	AccountID   *string
	CategoryID  *string
	Date        *time.Time
	Description *string
	Amount      *float64
	Currency    *string
	Type        *domain.TransactionType
	Tags        *[]string
	Fee         *float64

	ExcludeFromAnalytics *bool
}

// LedgerStore is the persistent transaction ledger consumed by the engine.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, tx domain.Transaction) (string, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error
	DeleteTransaction(ctx context.Context, id string) error

	// GetTransactionsByDateRange returns the user's transactions with
	// start <= date <= end, ordered by date.
	GetTransactionsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)

	// IsDuplicateHash reports whether the content hash was already
	// imported by this user from this source. Identical content from a
	// different source is not a duplicate.
	IsDuplicateHash(ctx context.Context, userID, hash, source string) (bool, error)

	// GetImportedHashes returns every content hash recorded for
	// (userID, source), for batch duplicate checks.
	GetImportedHashes(ctx context.Context, userID, source string) (map[string]struct{}, error)

	// RecordImport remembers a content hash so reimports are detected.
	// Returns ErrDuplicateImport if the tuple already exists.
	RecordImport(ctx context.Context, userID, source, hash, transactionID string) error

	// DeleteImportRecord removes the dedup record tied to a transaction.
	// A missing record is not an error.
	DeleteImportRecord(ctx context.Context, transactionID string) error

	// LinkPair sets pairID on both transactions as a single all-or-nothing
	// unit. Returns ErrLinkConsistency if either half cannot be applied.
	LinkPair(ctx context.Context, outID, inID, pairID string) error

	// UnlinkPair clears pairID from both transactions carrying it, as a
	// single all-or-nothing unit.
	UnlinkPair(ctx context.Context, userID, pairID string) error
}

// CategoryStore lists a user's categories, including the reserved transfer
// markers.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category, userID string) (string, error)
}

// BudgetStore persists budget definitions.
type BudgetStore interface {
	ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
	CreateBudget(ctx context.Context, b domain.Budget) (string, error)
}
