package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// identityConverter fails the test if a conversion is attempted.
type identityConverter struct{ t *testing.T }

func (c identityConverter) Convert(_ context.Context, amount float64, from, to string) (float64, error) {
	c.t.Helper()
	c.t.Fatalf("unexpected conversion %s -> %s", from, to)
	return 0, nil
}

// fixedConverter converts using a fixed multiplier.
type fixedConverter struct{ factor float64 }

func (c fixedConverter) Convert(_ context.Context, amount float64, from, to string) (float64, error) {
	return amount * c.factor, nil
}

type failingConverter struct{}

func (failingConverter) Convert(context.Context, float64, string, string) (float64, error) {
	return 0, errors.New("rates unavailable")
}

func march(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func expense(id, categoryID string, amount float64, currency string, date time.Time) domain.Transaction {
	return domain.Transaction{
		ID: id, CategoryID: categoryID, Amount: amount,
		Currency: currency, Type: domain.TypeExpense, Date: date,
	}
}

func monthBudget() domain.Budget {
	end := march(31)
	return domain.Budget{
		ID: "b1", CategoryID: "c-groceries", Amount: 500, Currency: "USD",
		Period: domain.PeriodMonth, StartDate: march(1), EndDate: &end,
		AlertThreshold: 80,
	}
}

func TestProgress(t *testing.T) {
	txns := []domain.Transaction{
		expense("t1", "c-groceries", 300, "USD", march(5)),
		expense("t2", "c-groceries", 150, "USD", march(20)),
		// Wrong category, wrong type, out of range: all ignored.
		expense("t3", "c-cafes", 40, "USD", march(6)),
		{ID: "t4", CategoryID: "c-groceries", Amount: 100, Currency: "USD", Type: domain.TypeIncome, Date: march(7)},
		expense("t5", "c-groceries", 75, "USD", march(2).AddDate(0, -1, 0)),
	}

	got, err := Progress(context.Background(), monthBudget(), txns, identityConverter{t}, march(25))
	require.NoError(t, err)

	require.Equal(t, 450.0, got.Spent)
	require.Equal(t, 50.0, got.Remaining)
	require.Equal(t, 90, got.Percentage)
	require.False(t, got.IsOverBudget)
	require.True(t, got.ShouldAlert, "90 percent is past the 80 percent threshold")
}

func TestProgress_OverBudget(t *testing.T) {
	txns := []domain.Transaction{
		expense("t1", "c-groceries", 600, "USD", march(5)),
	}

	got, err := Progress(context.Background(), monthBudget(), txns, identityConverter{t}, march(25))
	require.NoError(t, err)
	require.True(t, got.IsOverBudget)
	require.Equal(t, -100.0, got.Remaining)
	require.Equal(t, 120, got.Percentage)
}

func TestProgress_ConvertsForeignCurrency(t *testing.T) {
	txns := []domain.Transaction{
		expense("t1", "c-groceries", 4000, "UAH", march(5)),
	}

	// 4000 UAH at a 0.025 USD/UAH factor is 100 USD.
	got, err := Progress(context.Background(), monthBudget(), txns, fixedConverter{factor: 0.025}, march(25))
	require.NoError(t, err)
	require.InDelta(t, 100.0, got.Spent, 1e-9)
}

func TestProgress_OngoingBudgetEndsNow(t *testing.T) {
	b := monthBudget()
	b.EndDate = nil

	txns := []domain.Transaction{
		expense("t1", "c-groceries", 100, "USD", march(5)),
		// After "now": outside the window of an ongoing budget.
		expense("t2", "c-groceries", 100, "USD", march(20)),
	}

	got, err := Progress(context.Background(), b, txns, identityConverter{t}, march(10))
	require.NoError(t, err)
	require.Equal(t, 100.0, got.Spent)
}

func TestProgress_ConversionFailure(t *testing.T) {
	txns := []domain.Transaction{
		expense("t1", "c-groceries", 4000, "UAH", march(5)),
	}

	_, err := Progress(context.Background(), monthBudget(), txns, failingConverter{}, march(25))
	require.Error(t, err)
}

func TestProgress_ZeroAmountBudget(t *testing.T) {
	b := monthBudget()
	b.Amount = 0

	got, err := Progress(context.Background(), b, nil, identityConverter{t}, march(25))
	require.NoError(t, err)
	require.Equal(t, 0, got.Percentage)
	require.False(t, got.IsOverBudget)
}
