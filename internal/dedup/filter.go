package dedup

import (
	"context"
	"fmt"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Filter checks parsed transactions against a user's per-source import
// history in the Ledger Store.
type Filter struct {
	ledger store.LedgerStore
}

// NewFilter creates a duplicate filter over the given ledger store.
func NewFilter(ledger store.LedgerStore) *Filter {
	return &Filter{ledger: ledger}
}

// SplitResult partitions one parsed batch into new and duplicate records.
// Order within each slice preserves input order.
type SplitResult struct {
	New        []domain.ParsedTransaction
	Duplicates []domain.ParsedTransaction
}

// Split partitions txns by content hash against the (userID, source) import
// history. Hashes repeated inside the same batch count as duplicates from
// their second occurrence on, matching the store's uniqueness constraint.
func (f *Filter) Split(ctx context.Context, userID, source string, txns []domain.ParsedTransaction) (*SplitResult, error) {
	seen, err := f.ledger.GetImportedHashes(ctx, userID, source)
	if err != nil {
		return nil, fmt.Errorf("load imported hashes: %w", err)
	}

	// Copy so in-batch occurrences don't mutate the caller's view of
	// persisted history.
	known := make(map[string]struct{}, len(seen)+len(txns))
	for h := range seen {
		known[h] = struct{}{}
	}

	result := &SplitResult{}
	for _, tx := range txns {
		if _, dup := known[tx.Hash]; dup {
			result.Duplicates = append(result.Duplicates, tx)
			continue
		}
		known[tx.Hash] = struct{}{}
		result.New = append(result.New, tx)
	}
	return result, nil
}

// IsDuplicate checks a single parsed transaction against the import history.
func (f *Filter) IsDuplicate(ctx context.Context, userID, source string, tx domain.ParsedTransaction) (bool, error) {
	dup, err := f.ledger.IsDuplicateHash(ctx, userID, tx.Hash, source)
	if err != nil {
		return false, fmt.Errorf("check duplicate hash: %w", err)
	}
	return dup, nil
}
