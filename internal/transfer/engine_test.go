package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

const testUser = "u1"

type staticConverter struct {
	rates map[string]float64 // per 1 base unit
}

func (c staticConverter) Convert(_ context.Context, amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	return amount / c.rates[from], nil
}

type fixture struct {
	mem    *store.Memory
	engine *Engine
	outCat string
	inCat  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	outCat, err := mem.CreateCategory(ctx, domain.Category{Name: domain.TransferOutCategory, Type: domain.TypeExpense}, testUser)
	require.NoError(t, err)
	inCat, err := mem.CreateCategory(ctx, domain.Category{Name: domain.TransferInCategory, Type: domain.TypeIncome}, testUser)
	require.NoError(t, err)

	conv := staticConverter{rates: map[string]float64{"UAH": 40, "EUR": 0.9}}
	return &fixture{
		mem:    mem,
		engine: NewEngine(mem, mem, conv, "USD"),
		outCat: outCat,
		inCat:  inCat,
	}
}

func (f *fixture) addTx(t *testing.T, tx domain.Transaction) string {
	t.Helper()
	tx.UserID = testUser
	if tx.Date.IsZero() {
		tx.Date = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	id, err := f.mem.CreateTransaction(context.Background(), tx)
	require.NoError(t, err)
	return id
}

func window() (time.Time, time.Time) {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
}

func TestReconcile_SameCurrencyNoFee(t *testing.T) {
	f := newFixture(t)
	outID := f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 100, Currency: "USD",
		Type: domain.TypeExpense, PairID: "p1", ExchangeRate: 1,
	})
	inID := f.addTx(t, domain.Transaction{
		CategoryID: f.inCat, Amount: 98, Currency: "USD",
		Type: domain.TypeIncome, PairID: "p1", ExchangeRate: 1,
	})

	start, end := window()
	report, err := f.engine.Reconcile(context.Background(), testUser, start, end)
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)
	require.Empty(t, report.Unlinked)

	pair := report.Pairs[0]
	require.Equal(t, outID, pair.OutID)
	require.Equal(t, inID, pair.InID)
	require.Equal(t, 100.0, pair.SentBase)
	require.Equal(t, 98.0, pair.ReceivedBase)
	require.Zero(t, pair.FeeBase)
	require.InDelta(t, pair.ReceivedBase-pair.SentBase, pair.Diff, 1e-9)
	require.InDelta(t, -2.0, pair.DiffPct, 1e-9)
	require.Zero(t, pair.ActualRate, "same currency has no actual rate")
	require.Zero(t, pair.MarketRate, "same currency has no market rate")
}

func TestReconcile_CrossCurrencyRecordedRates(t *testing.T) {
	f := newFixture(t)
	// 1000 UAH sent at a recorded 0.025 USD per UAH; 24 EUR received at a
	// recorded 1.08 USD per EUR.
	f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 1000, Currency: "UAH",
		Type: domain.TypeExpense, PairID: "p1", ExchangeRate: 0.025, Fee: 20,
	})
	f.addTx(t, domain.Transaction{
		CategoryID: f.inCat, Amount: 24, Currency: "EUR",
		Type: domain.TypeIncome, PairID: "p1", ExchangeRate: 1.08,
	})

	start, end := window()
	report, err := f.engine.Reconcile(context.Background(), testUser, start, end)
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)

	pair := report.Pairs[0]
	require.InDelta(t, 25.0, pair.SentBase, 1e-9)
	require.InDelta(t, 25.92, pair.ReceivedBase, 1e-9)
	require.InDelta(t, 0.5, pair.FeeBase, 1e-9, "20 UAH fee at the recorded rate")
	require.InDelta(t, 25.92-25.0-0.5, pair.Diff, 1e-9)
	require.InDelta(t, pair.Diff/25.0*100, pair.DiffPct, 1e-9)
	require.InDelta(t, 24.0/1000, pair.ActualRate, 1e-9)
	require.InDelta(t, 0.025/1.08, pair.MarketRate, 1e-9)
}

func TestReconcile_LiveConvertFallback(t *testing.T) {
	f := newFixture(t)
	// No recorded rates: the converter's table applies (UAH 40/USD).
	f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 4000, Currency: "UAH",
		Type: domain.TypeExpense, PairID: "p1",
	})
	f.addTx(t, domain.Transaction{
		CategoryID: f.inCat, Amount: 90, Currency: "EUR",
		Type: domain.TypeIncome, PairID: "p1",
	})

	start, end := window()
	report, err := f.engine.Reconcile(context.Background(), testUser, start, end)
	require.NoError(t, err)
	require.Len(t, report.Pairs, 1)

	pair := report.Pairs[0]
	require.InDelta(t, 100.0, pair.SentBase, 1e-9)
	require.InDelta(t, 100.0, pair.ReceivedBase, 1e-9)
	require.Zero(t, pair.MarketRate, "market rate needs both recorded rates")
}

func TestReconcile_UnlinkedSurfaced(t *testing.T) {
	f := newFixture(t)
	lonely := f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 50, Currency: "USD",
		Type: domain.TypeExpense,
	})
	// A pairId whose counterpart is missing is also surfaced.
	widowed := f.addTx(t, domain.Transaction{
		CategoryID: f.inCat, Amount: 50, Currency: "USD",
		Type: domain.TypeIncome, PairID: "p-half",
	})
	// Non-transfer transactions never appear.
	f.addTx(t, domain.Transaction{
		CategoryID: "c-groceries", Amount: 10, Currency: "USD",
		Type: domain.TypeExpense,
	})

	start, end := window()
	report, err := f.engine.Reconcile(context.Background(), testUser, start, end)
	require.NoError(t, err)
	require.Empty(t, report.Pairs)
	require.Len(t, report.Unlinked, 2)

	ids := []string{report.Unlinked[0].ID, report.Unlinked[1].ID}
	require.ElementsMatch(t, []string{lonely, widowed}, ids)
}

func TestReconcile_MissingMarkerCategories(t *testing.T) {
	mem := store.NewMemory()
	engine := NewEngine(mem, mem, staticConverter{}, "USD")

	start, end := window()
	_, err := engine.Reconcile(context.Background(), testUser, start, end)
	require.Error(t, err)
}

func TestLinkAndUnlink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outID := f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 100, Currency: "USD", Type: domain.TypeExpense,
	})
	inID := f.addTx(t, domain.Transaction{
		CategoryID: f.inCat, Amount: 100, Currency: "USD", Type: domain.TypeIncome,
	})

	pairID, err := f.engine.Link(ctx, outID, inID)
	require.NoError(t, err)
	require.NotEmpty(t, pairID)

	out, err := f.mem.GetTransaction(ctx, outID)
	require.NoError(t, err)
	in, err := f.mem.GetTransaction(ctx, inID)
	require.NoError(t, err)
	require.Equal(t, pairID, out.PairID)
	require.Equal(t, pairID, in.PairID)

	// Re-linking an already linked half must fail before touching the store.
	_, err = f.engine.Link(ctx, outID, inID)
	require.Error(t, err)

	require.NoError(t, f.engine.Unlink(ctx, testUser, pairID))
	out, err = f.mem.GetTransaction(ctx, outID)
	require.NoError(t, err)
	require.Empty(t, out.PairID)
}

func TestLink_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Link(ctx, "", "x")
	require.Error(t, err)
	_, err = f.engine.Link(ctx, "x", "x")
	require.Error(t, err)
	_, err = f.engine.Link(ctx, "missing-a", "missing-b")
	require.Error(t, err)
}

func TestLink_RejectsCrossUserPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outID := f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 100, Currency: "USD", Type: domain.TypeExpense,
	})
	otherIn, err := f.mem.CreateTransaction(ctx, domain.Transaction{
		UserID: "u2", CategoryID: f.inCat, Amount: 100, Currency: "USD",
		Type: domain.TypeIncome, Date: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = f.engine.Link(ctx, outID, otherIn)
	require.Error(t, err)

	// A rejected link must leave both ledgers untouched; a cross-user
	// pair id could never be cleared by either user's Unlink.
	out, err := f.mem.GetTransaction(ctx, outID)
	require.NoError(t, err)
	require.Empty(t, out.PairID)
	in, err := f.mem.GetTransaction(ctx, otherIn)
	require.NoError(t, err)
	require.Empty(t, in.PairID)
}

func TestLink_RequiresOppositeMarkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	outID := f.addTx(t, domain.Transaction{
		CategoryID: f.outCat, Amount: 100, Currency: "USD", Type: domain.TypeExpense,
	})
	inID := f.addTx(t, domain.Transaction{
		CategoryID: f.inCat, Amount: 100, Currency: "USD", Type: domain.TypeIncome,
	})
	groceries := f.addTx(t, domain.Transaction{
		CategoryID: "c-groceries", Amount: 100, Currency: "USD", Type: domain.TypeExpense,
	})

	// Non-marker half on either side.
	_, err := f.engine.Link(ctx, groceries, inID)
	require.Error(t, err)
	_, err = f.engine.Link(ctx, outID, groceries)
	require.Error(t, err)

	// Swapped halves: out must be transfer-out, in transfer-in.
	_, err = f.engine.Link(ctx, inID, outID)
	require.Error(t, err)

	for _, id := range []string{outID, inID, groceries} {
		tx, err := f.mem.GetTransaction(ctx, id)
		require.NoError(t, err)
		require.Empty(t, tx.PairID)
	}
}

func TestUnlink_Validation(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.engine.Unlink(context.Background(), testUser, ""))
	require.ErrorIs(t, f.engine.Unlink(context.Background(), testUser, "no-such-pair"), store.ErrLinkConsistency)
}
