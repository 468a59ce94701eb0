package validate

import (
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

func testCategories() []domain.Category {
	return []domain.Category{
		{ID: "c-out", Name: domain.TransferOutCategory, Type: domain.TypeExpense},
		{ID: "c-in", Name: domain.TransferInCategory, Type: domain.TypeIncome},
		{ID: "c-groceries", Name: "Groceries", Type: domain.TypeExpense},
	}
}

func validTx(id string) domain.Transaction {
	return domain.Transaction{
		ID: id, UserID: "u1",
		Date:        time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		Description: "Coffee", Amount: 10, Currency: "USD",
		Type: domain.TypeExpense, CategoryID: "c-groceries",
	}
}

func TestValidateLedger_CleanLedger(t *testing.T) {
	out := validTx("t1")
	out.CategoryID = "c-out"
	out.PairID = "p1"
	in := validTx("t2")
	in.Type = domain.TypeIncome
	in.CategoryID = "c-in"
	in.PairID = "p1"

	result := ValidateLedger([]domain.Transaction{validTx("t0"), out, in}, testCategories())
	if !result.Valid() {
		t.Fatalf("Valid() = false, errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %+v, want none", result.Warnings)
	}
}

func TestValidateLedger_EntityErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domain.Transaction)
		wantField string
	}{
		{"empty id", func(tx *domain.Transaction) { tx.ID = "" }, "ID"},
		{"zero date", func(tx *domain.Transaction) { tx.Date = time.Time{} }, "Date"},
		{"negative amount", func(tx *domain.Transaction) { tx.Amount = -5 }, "Amount"},
		{"bad type", func(tx *domain.Transaction) { tx.Type = "refund" }, "Type"},
		{"bad currency", func(tx *domain.Transaction) { tx.Currency = "DOLLARS" }, "Currency"},
		{"unknown category", func(tx *domain.Transaction) { tx.CategoryID = "ghost" }, "CategoryID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTx("t1")
			tt.mutate(&tx)

			result := ValidateLedger([]domain.Transaction{tx}, testCategories())
			if result.Valid() {
				t.Fatal("Valid() = true, want errors")
			}
			found := false
			for _, e := range result.Errors {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no error on field %s, got %+v", tt.wantField, result.Errors)
			}
		})
	}
}

func TestValidateLedger_DuplicateIDs(t *testing.T) {
	result := ValidateLedger([]domain.Transaction{validTx("t1"), validTx("t1")}, testCategories())
	if result.Valid() {
		t.Fatal("Valid() = true for duplicate transaction IDs")
	}
}

func TestValidateLedger_TypeMismatchIsWarning(t *testing.T) {
	tx := validTx("t1")
	tx.Type = domain.TypeIncome
	tx.CategoryID = "c-groceries" // expense category

	result := ValidateLedger([]domain.Transaction{tx}, testCategories())
	if !result.Valid() {
		t.Fatalf("type mismatch must be a warning, got errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %+v, want exactly one", result.Warnings)
	}
}

func TestValidateLedger_AsymmetricPair(t *testing.T) {
	half := validTx("t1")
	half.CategoryID = "c-out"
	half.PairID = "p1"

	result := ValidateLedger([]domain.Transaction{half}, testCategories())
	if result.Valid() {
		t.Fatal("Valid() = true for a one-sided pair")
	}
}

func TestValidateLedger_PairWithoutBothMarkers(t *testing.T) {
	a := validTx("t1")
	a.CategoryID = "c-out"
	a.PairID = "p1"
	b := validTx("t2")
	b.CategoryID = "c-out"
	b.PairID = "p1"

	result := ValidateLedger([]domain.Transaction{a, b}, testCategories())
	if result.Valid() {
		t.Fatal("Valid() = true for a pair with two outgoing halves")
	}
}

func TestValidateBudget(t *testing.T) {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	valid := domain.Budget{
		ID: "b1", UserID: "u1", CategoryID: "c-groceries",
		Amount: 500, Currency: "USD", Period: domain.PeriodMonth,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   &end, AlertThreshold: 80,
	}

	if result := ValidateBudget(valid, testCategories()); !result.Valid() {
		t.Fatalf("Valid() = false for a valid budget: %+v", result.Errors)
	}

	tests := []struct {
		name   string
		mutate func(*domain.Budget)
	}{
		{"zero amount", func(b *domain.Budget) { b.Amount = 0 }},
		{"bad period", func(b *domain.Budget) { b.Period = "fortnight" }},
		{"bad currency", func(b *domain.Budget) { b.Currency = "" }},
		{"zero start", func(b *domain.Budget) { b.StartDate = time.Time{} }},
		{"end before start", func(b *domain.Budget) {
			early := b.StartDate.AddDate(0, -1, 0)
			b.EndDate = &early
		}},
		{"unknown category", func(b *domain.Budget) { b.CategoryID = "ghost" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			if result := ValidateBudget(b, testCategories()); result.Valid() {
				t.Error("Valid() = true, want errors")
			}
		})
	}
}

func TestValidateBudget_ThresholdWarning(t *testing.T) {
	b := domain.Budget{
		ID: "b1", CategoryID: "c-groceries", Amount: 500, Currency: "USD",
		Period:    domain.PeriodMonth,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),

		AlertThreshold: 150,
	}

	result := ValidateBudget(b, testCategories())
	if !result.Valid() {
		t.Fatalf("threshold must be a warning, got errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %+v, want exactly one", result.Warnings)
	}
}
