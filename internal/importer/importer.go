// Package importer orchestrates one file import end to end: parser
// selection, parsing, duplicate filtering and ledger writes.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/dedup"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
	"github.com/rumor-ml/commons.systems/finledger/internal/registry"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Categorizer suggests a category id for a parsed transaction. ok false
// leaves the transaction uncategorized.
type Categorizer interface {
	Categorize(ctx context.Context, userID string, tx domain.ParsedTransaction) (categoryID string, ok bool)
}

// Importer imports statement files into the ledger. Imports for the same
// user are serialized into one lane; the store's uniqueness constraint on
// (user, source, hash) backstops anything the lane cannot see.
type Importer struct {
	registry    *registry.Registry
	ledger      store.LedgerStore
	filter      *dedup.Filter
	categorizer Categorizer
	logger      *slog.Logger

	lanesMu sync.Mutex
	lanes   map[string]*sync.Mutex
}

// Option configures an Importer.
type Option func(*Importer)

// WithCategorizer enables category suggestion during import.
func WithCategorizer(c Categorizer) Option {
	return func(i *Importer) { i.categorizer = c }
}

// WithLogger sets the logger for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(i *Importer) { i.logger = l }
}

// New creates an importer over the given registry and ledger store.
func New(reg *registry.Registry, ledger store.LedgerStore, opts ...Option) *Importer {
	imp := &Importer{
		registry: reg,
		ledger:   ledger,
		filter:   dedup.NewFilter(ledger),
		logger:   slog.Default(),
		lanes:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Preview is one parsed file split into what an import would do, without
// any ledger writes.
type Preview struct {
	Parser     string
	New        []domain.ParsedTransaction
	Duplicates []domain.ParsedTransaction
	Skipped    int
	Warnings   []string
}

// PreviewFile parses a file and reports what ImportFile would import,
// without writing anything.
func (i *Importer) PreviewFile(ctx context.Context, path, userID, source string) (*Preview, error) {
	p, result, err := i.parseFile(ctx, path, source)
	if err != nil {
		return nil, err
	}

	split, err := i.filter.Split(ctx, userID, source, result.Transactions())
	if err != nil {
		return nil, err
	}

	return &Preview{
		Parser:     p.Name(),
		New:        split.New,
		Duplicates: split.Duplicates,
		Skipped:    result.Skipped,
		Warnings:   result.Warnings,
	}, nil
}

// ImportFile parses a file and writes its new transactions to the ledger.
// Reimporting the same file is a no-op for every record whose hash was
// already recorded.
func (i *Importer) ImportFile(ctx context.Context, path, userID, source, accountID string) (*domain.ImportResult, error) {
	_, result, err := i.parseFile(ctx, path, source)
	if err != nil {
		return nil, err
	}
	return i.commit(ctx, userID, source, accountID, result)
}

// parseFile selects a parser and parses the file.
func (i *Importer) parseFile(ctx context.Context, path, source string) (parser.Parser, *parser.Result, error) {
	p, err := i.registry.FindParser(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	meta, err := parser.NewMetadata(path, source, time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metadata: %w", err)
	}

	result, err := p.Parse(ctx, f, meta)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s with %s: %w", filepath.Base(path), p.Name(), err)
	}

	for _, w := range result.Warnings {
		i.logger.Warn("record skipped", "file", filepath.Base(path), "parser", p.Name(), "detail", w)
	}
	return p, result, nil
}

// commit writes new transactions inside the user's import lane.
func (i *Importer) commit(ctx context.Context, userID, source, accountID string, result *parser.Result) (*domain.ImportResult, error) {
	lane := i.lane(userID)
	lane.Lock()
	defer lane.Unlock()

	split, err := i.filter.Split(ctx, userID, source, result.Transactions())
	if err != nil {
		return nil, err
	}

	out := &domain.ImportResult{
		Duplicates: len(split.Duplicates),
		Skipped:    result.Skipped,
	}

	for _, parsed := range split.New {
		if err := parsed.Validate(); err != nil {
			i.logger.Warn("invalid parsed transaction dropped", "detail", err)
			out.Skipped++
			continue
		}

		tx := domain.Transaction{
			UserID:      userID,
			AccountID:   accountID,
			Date:        parsed.Date,
			Description: parsed.Description,
			Amount:      parsed.Amount,
			Currency:    parsed.Currency,
			Type:        parsed.Type,
		}
		if i.categorizer != nil {
			if categoryID, ok := i.categorizer.Categorize(ctx, userID, parsed); ok {
				tx.CategoryID = categoryID
			}
		}

		id, err := i.ledger.CreateTransaction(ctx, tx)
		if err != nil {
			return out, fmt.Errorf("creating transaction: %w", err)
		}

		if err := i.ledger.RecordImport(ctx, userID, source, parsed.Hash, id); err != nil {
			if errors.Is(err, store.ErrDuplicateImport) {
				// A concurrent import won the race; undo our copy and
				// count it as a duplicate.
				if delErr := i.ledger.DeleteTransaction(ctx, id); delErr != nil {
					i.logger.Warn("failed to roll back duplicate transaction", "id", id, "error", delErr)
				}
				out.Duplicates++
				continue
			}
			return out, fmt.Errorf("recording import: %w", err)
		}
		out.Imported++
	}
	return out, nil
}

// DeleteTransaction removes a ledger transaction and, best effort, its
// import-dedup record. A failed record cleanup is logged and never blocks
// the deletion.
func (i *Importer) DeleteTransaction(ctx context.Context, id string) error {
	if err := i.ledger.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	if err := i.ledger.DeleteImportRecord(ctx, id); err != nil {
		i.logger.Warn("failed to delete import record", "transaction", id, "error", err)
	}
	return nil
}

func (i *Importer) lane(userID string) *sync.Mutex {
	i.lanesMu.Lock()
	defer i.lanesMu.Unlock()

	lane, ok := i.lanes[userID]
	if !ok {
		lane = &sync.Mutex{}
		i.lanes[userID] = lane
	}
	return lane
}
