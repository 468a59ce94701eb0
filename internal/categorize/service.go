package categorize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// historyWindow bounds how far back history detection looks.
const historyWindow = 365 * 24 * time.Hour

// Service assigns categories to incoming transactions. It tries, in
// order: the source-declared category name, the rule engine, fuzzy
// matching against category names, then the user's categorized history.
type Service struct {
	engine     *Engine
	categories store.CategoryStore
	ledger     store.LedgerStore
	logger     *slog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceClock overrides the clock.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a categorization service. engine may be nil to
// skip rule matching.
func NewService(engine *Engine, categories store.CategoryStore, ledger store.LedgerStore, opts ...ServiceOption) *Service {
	s := &Service{
		engine:     engine,
		categories: categories,
		ledger:     ledger,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categorize resolves a category id for the transaction. A false return
// leaves the transaction uncategorized; categorization never fails an
// import.
func (s *Service) Categorize(ctx context.Context, userID string, tx domain.ParsedTransaction) (string, bool) {
	cats, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		s.logger.Warn("category lookup failed, leaving transaction uncategorized",
			"user", userID, "error", err)
		return "", false
	}

	if tx.Transfer {
		if id, ok := findByName(cats, transferMarkerName(tx.Type)); ok {
			return id, true
		}
	}

	// Source-declared category names win over every heuristic.
	if tx.Category != "" {
		if id, ok := findTypedByName(cats, tx.Category, tx.Type); ok {
			return id, true
		}
	}

	if s.engine != nil {
		if m, ok := s.engine.Match(tx.Description); ok {
			name := m.Category
			if m.Transfer {
				name = transferMarkerName(tx.Type)
			}
			if id, ok := findByName(cats, name); ok {
				return id, true
			}
			s.logger.Warn("rule matched an unknown category",
				"rule", m.RuleName, "category", name, "user", userID)
		}
	}

	if id, ok := MatchByName(tx.Description, cats, tx.Type); ok {
		return id, true
	}

	end := s.now()
	history, err := s.ledger.GetTransactionsByDateRange(ctx, userID, end.Add(-historyWindow), end)
	if err != nil {
		s.logger.Warn("history lookup failed", "user", userID, "error", err)
		return "", false
	}
	return DetectFromHistory(tx.Description, tx.Type, history)
}

// transferMarkerName picks the marker category for the money direction.
func transferMarkerName(txType domain.TransactionType) string {
	if txType == domain.TypeIncome {
		return domain.TransferInCategory
	}
	return domain.TransferOutCategory
}

func findByName(cats []domain.Category, name string) (string, bool) {
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return "", false
}

func findTypedByName(cats []domain.Category, name string, txType domain.TransactionType) (string, bool) {
	for _, c := range cats {
		if c.Type == txType && strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return "", false
}
