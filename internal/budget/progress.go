// Package budget evaluates budget progress over a window of ledger
// transactions.
package budget

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// Converter converts amounts into the budget's settlement currency.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Progress evaluates one budget against the given ledger transactions.
// Only expenses in the budget's category within [StartDate, EndDate]
// count; a nil EndDate means the budget is ongoing and the window closes
// at now. Amounts in other currencies are converted to the budget's
// settlement currency.
func Progress(ctx context.Context, b domain.Budget, txns []domain.Transaction, conv Converter, now time.Time) (domain.BudgetProgress, error) {
	end := now
	if b.EndDate != nil {
		end = *b.EndDate
	}

	var spent float64
	for _, tx := range txns {
		if tx.Type != domain.TypeExpense || tx.CategoryID != b.CategoryID {
			continue
		}
		if tx.Date.Before(b.StartDate) || tx.Date.After(end) {
			continue
		}

		amount := tx.Amount
		if tx.Currency != b.Currency {
			converted, err := conv.Convert(ctx, tx.Amount, tx.Currency, b.Currency)
			if err != nil {
				return domain.BudgetProgress{}, fmt.Errorf("converting transaction %s: %w", tx.ID, err)
			}
			amount = converted
		}
		spent += amount
	}

	percentage := 0
	if b.Amount != 0 {
		percentage = int(math.Round(spent / b.Amount * 100))
	}

	return domain.BudgetProgress{
		BudgetID:     b.ID,
		Spent:        spent,
		Remaining:    b.Amount - spent,
		Percentage:   percentage,
		IsOverBudget: spent > b.Amount,
		ShouldAlert:  float64(percentage) >= b.AlertThreshold,
	}, nil
}
