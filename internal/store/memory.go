package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// Memory is an in-memory implementation of the store interfaces, used in
// tests and as a substitution point for the injected dependencies.
type Memory struct {
	mu sync.Mutex

	nextID       int
	transactions map[string]domain.Transaction
	categories   map[string][]domain.Category // by user
	budgets      map[string][]domain.Budget   // by user
	imports      map[string]importRecord      // by transaction id
}

type importRecord struct {
	userID string
	source string
	hash   string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string]domain.Transaction),
		categories:   make(map[string][]domain.Category),
		budgets:      make(map[string][]domain.Budget),
		imports:      make(map[string]importRecord),
	}
}

func (m *Memory) allocID(prefix string) string {
	m.nextID++
	return prefix + strconv.Itoa(m.nextID)
}

// CreateTransaction stores a transaction and returns its generated id.
func (m *Memory) CreateTransaction(ctx context.Context, tx domain.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.ID == "" {
		tx.ID = m.allocID("tx")
	}
	if _, exists := m.transactions[tx.ID]; exists {
		return "", fmt.Errorf("transaction %s already exists", tx.ID)
	}
	m.transactions[tx.ID] = tx
	return tx.ID, nil
}

// GetTransaction returns a copy of the stored transaction.
func (m *Memory) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

// UpdateTransaction applies a partial update.
func (m *Memory) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return ErrNotFound
	}
	if patch.AccountID != nil {
		tx.AccountID = *patch.AccountID
	}
	if patch.CategoryID != nil {
		tx.CategoryID = *patch.CategoryID
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		tx.Currency = *patch.Currency
	}
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.Tags != nil {
		tx.Tags = *patch.Tags
	}
	if patch.Fee != nil {
		tx.Fee = *patch.Fee
	}
	if patch.ExcludeFromAnalytics != nil {
		tx.ExcludeFromAnalytics = *patch.ExcludeFromAnalytics
	}
	m.transactions[id] = tx
	return nil
}

// DeleteTransaction removes a transaction.
func (m *Memory) DeleteTransaction(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[id]; !ok {
		return ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

// GetTransactionsByDateRange returns the user's transactions in
// [start, end], ordered by date then id.
func (m *Memory) GetTransactionsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Transaction
	for _, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// IsDuplicateHash reports whether (userID, source, hash) was imported before.
func (m *Memory) IsDuplicateHash(ctx context.Context, userID, hash, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.imports {
		if rec.userID == userID && rec.source == source && rec.hash == hash {
			return true, nil
		}
	}
	return false, nil
}

// GetImportedHashes returns all hashes recorded for (userID, source).
func (m *Memory) GetImportedHashes(ctx context.Context, userID, source string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hashes := make(map[string]struct{})
	for _, rec := range m.imports {
		if rec.userID == userID && rec.source == source {
			hashes[rec.hash] = struct{}{}
		}
	}
	return hashes, nil
}

// RecordImport stores a dedup record, enforcing (userID, source, hash)
// uniqueness like the SQLite index does.
func (m *Memory) RecordImport(ctx context.Context, userID, source, hash, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.imports {
		if rec.userID == userID && rec.source == source && rec.hash == hash {
			return ErrDuplicateImport
		}
	}
	m.imports[transactionID] = importRecord{userID: userID, source: source, hash: hash}
	return nil
}

// DeleteImportRecord removes the dedup record for a transaction, if any.
func (m *Memory) DeleteImportRecord(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.imports, transactionID)
	return nil
}

// LinkPair sets pairID on both transactions, or neither.
func (m *Memory) LinkPair(ctx context.Context, outID, inID, pairID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, okOut := m.transactions[outID]
	in, okIn := m.transactions[inID]
	if !okOut || !okIn {
		return ErrLinkConsistency
	}
	if out.PairID != "" || in.PairID != "" {
		return ErrLinkConsistency
	}
	out.PairID = pairID
	in.PairID = pairID
	m.transactions[outID] = out
	m.transactions[inID] = in
	return nil
}

// UnlinkPair clears pairID from the two transactions carrying it.
func (m *Memory) UnlinkPair(ctx context.Context, userID, pairID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, tx := range m.transactions {
		if tx.UserID == userID && tx.PairID == pairID {
			ids = append(ids, id)
		}
	}
	if len(ids) != 2 {
		return ErrLinkConsistency
	}
	for _, id := range ids {
		tx := m.transactions[id]
		tx.PairID = ""
		m.transactions[id] = tx
	}
	return nil
}

// ListCategories returns the user's categories in creation order.
func (m *Memory) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Category, len(m.categories[userID]))
	copy(out, m.categories[userID])
	return out, nil
}

// CreateCategory stores a category for the user.
func (m *Memory) CreateCategory(ctx context.Context, c domain.Category, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = m.allocID("cat")
	}
	m.categories[userID] = append(m.categories[userID], c)
	return c.ID, nil
}

// ListBudgets returns the user's budgets.
func (m *Memory) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Budget, len(m.budgets[userID]))
	copy(out, m.budgets[userID])
	return out, nil
}

// CreateBudget stores a budget.
func (m *Memory) CreateBudget(ctx context.Context, b domain.Budget) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == "" {
		b.ID = m.allocID("bud")
	}
	m.budgets[b.UserID] = append(m.budgets[b.UserID], b)
	return b.ID, nil
}
