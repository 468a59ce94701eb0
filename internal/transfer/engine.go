// Package transfer reconciles linked transfer pairs and surfaces unlinked
// transfer halves for manual linking.
package transfer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Converter provides live conversion for transactions that carry no
// recorded exchange rate.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Report is the outcome of one reconciliation pass. Unlinked transfer
// halves are surfaced for manual linking, never auto-paired by time
// proximity.
type Report struct {
	Pairs    []domain.TransferPair
	Unlinked []domain.Transaction
}

// Engine reconciles transfers for one base currency.
type Engine struct {
	ledger     store.LedgerStore
	categories store.CategoryStore
	conv       Converter
	base       string
}

// NewEngine creates a reconciliation engine. base is the currency all
// derived figures are expressed in.
func NewEngine(ledger store.LedgerStore, categories store.CategoryStore, conv Converter, base string) *Engine {
	return &Engine{ledger: ledger, categories: categories, conv: conv, base: base}
}

// Reconcile builds the transfer report for one user over a date range.
func (e *Engine) Reconcile(ctx context.Context, userID string, start, end time.Time) (*Report, error) {
	outCat, inCat, err := e.markerCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	txns, err := e.ledger.GetTransactionsByDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	byPair := make(map[string][]domain.Transaction)
	var pairOrder []string
	report := &Report{}

	for _, tx := range txns {
		if tx.CategoryID != outCat && tx.CategoryID != inCat {
			continue
		}
		if tx.PairID == "" {
			report.Unlinked = append(report.Unlinked, tx)
			continue
		}
		if _, seen := byPair[tx.PairID]; !seen {
			pairOrder = append(pairOrder, tx.PairID)
		}
		byPair[tx.PairID] = append(byPair[tx.PairID], tx)
	}

	for _, pairID := range pairOrder {
		group := byPair[pairID]
		out, in, ok := splitPair(group, outCat, inCat)
		if !ok {
			// A pairId without both halves in range is still unlinked
			// from the reconciliation's point of view.
			report.Unlinked = append(report.Unlinked, group...)
			continue
		}

		pair, err := e.buildPair(ctx, pairID, out, in)
		if err != nil {
			return nil, err
		}
		report.Pairs = append(report.Pairs, *pair)
	}

	sort.SliceStable(report.Unlinked, func(i, j int) bool {
		return report.Unlinked[i].Date.Before(report.Unlinked[j].Date)
	})
	return report, nil
}

// Link assigns a fresh pair id to both halves. Both transactions must
// belong to the same user and carry the opposite reserved transfer
// categories; the store applies the id as a single all-or-nothing unit.
func (e *Engine) Link(ctx context.Context, outID, inID string) (string, error) {
	if outID == "" || inID == "" || outID == inID {
		return "", fmt.Errorf("link needs two distinct transaction ids")
	}

	out, err := e.ledger.GetTransaction(ctx, outID)
	if err != nil {
		return "", fmt.Errorf("loading outgoing transaction: %w", err)
	}
	in, err := e.ledger.GetTransaction(ctx, inID)
	if err != nil {
		return "", fmt.Errorf("loading incoming transaction: %w", err)
	}
	if out.PairID != "" || in.PairID != "" {
		return "", fmt.Errorf("transaction is already part of a pair")
	}
	if out.UserID != in.UserID {
		return "", fmt.Errorf("transactions belong to different ledgers")
	}

	outCat, inCat, err := e.markerCategories(ctx, out.UserID)
	if err != nil {
		return "", err
	}
	if out.CategoryID != outCat {
		return "", fmt.Errorf("outgoing transaction is not categorized as %s", domain.TransferOutCategory)
	}
	if in.CategoryID != inCat {
		return "", fmt.Errorf("incoming transaction is not categorized as %s", domain.TransferInCategory)
	}

	pairID := uuid.NewString()
	if err := e.ledger.LinkPair(ctx, outID, inID, pairID); err != nil {
		return "", err
	}
	return pairID, nil
}

// Unlink clears the pair id from both halves.
func (e *Engine) Unlink(ctx context.Context, userID, pairID string) error {
	if pairID == "" {
		return fmt.Errorf("pair id cannot be empty")
	}
	return e.ledger.UnlinkPair(ctx, userID, pairID)
}

// markerCategories resolves the ids of the two reserved transfer
// categories.
func (e *Engine) markerCategories(ctx context.Context, userID string) (outID, inID string, err error) {
	cats, err := e.categories.ListCategories(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("loading categories: %w", err)
	}
	for _, c := range cats {
		switch c.Name {
		case domain.TransferOutCategory:
			outID = c.ID
		case domain.TransferInCategory:
			inID = c.ID
		}
	}
	if outID == "" || inID == "" {
		return "", "", fmt.Errorf("reserved transfer categories are missing")
	}
	return outID, inID, nil
}

// splitPair finds the out and in halves of a pair group. Anything other
// than exactly one of each is not a reconcilable pair.
func splitPair(group []domain.Transaction, outCat, inCat string) (out, in domain.Transaction, ok bool) {
	if len(group) != 2 {
		return out, in, false
	}
	for _, tx := range group {
		switch tx.CategoryID {
		case outCat:
			out = tx
		case inCat:
			in = tx
		}
	}
	if out.ID == "" || in.ID == "" {
		return out, in, false
	}
	return out, in, true
}

// buildPair derives all reconciliation figures for one linked pair.
func (e *Engine) buildPair(ctx context.Context, pairID string, out, in domain.Transaction) (*domain.TransferPair, error) {
	sentBase, err := e.toBase(ctx, out.Amount, out)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", pairID, err)
	}
	receivedBase, err := e.toBase(ctx, in.Amount, in)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", pairID, err)
	}

	var feeBase float64
	for _, tx := range []domain.Transaction{out, in} {
		if tx.Fee == 0 {
			continue
		}
		fb, err := e.toBase(ctx, tx.Fee, tx)
		if err != nil {
			return nil, fmt.Errorf("pair %s fee: %w", pairID, err)
		}
		feeBase += fb
	}

	diff := receivedBase - sentBase - feeBase
	diffPct := 0.0
	if sentBase != 0 {
		diffPct = diff / sentBase * 100
	}

	actualRate := 0.0
	if out.Currency != in.Currency && out.Amount != 0 {
		actualRate = in.Amount / out.Amount
	}
	marketRate := 0.0
	if out.Currency != in.Currency && out.ExchangeRate != 0 && in.ExchangeRate != 0 {
		marketRate = out.ExchangeRate / in.ExchangeRate
	}

	return &domain.TransferPair{
		PairID:           pairID,
		OutID:            out.ID,
		InID:             in.ID,
		SentAmount:       out.Amount,
		SentCurrency:     out.Currency,
		ReceivedAmount:   in.Amount,
		ReceivedCurrency: in.Currency,
		SentBase:         sentBase,
		ReceivedBase:     receivedBase,
		FeeBase:          feeBase,
		Diff:             diff,
		DiffPct:          diffPct,
		ActualRate:       actualRate,
		MarketRate:       marketRate,
	}, nil
}

// toBase converts an amount in the transaction's currency to the base
// currency, preferring the transaction's own recorded exchange rate so
// later rate drift cannot corrupt historical figures.
func (e *Engine) toBase(ctx context.Context, amount float64, tx domain.Transaction) (float64, error) {
	if tx.ExchangeRate != 0 {
		return amount * tx.ExchangeRate, nil
	}
	converted, err := e.conv.Convert(ctx, amount, tx.Currency, e.base)
	if err != nil {
		return 0, fmt.Errorf("converting %s to %s: %w", tx.Currency, e.base, err)
	}
	return converted, nil
}
