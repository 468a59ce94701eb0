package domain

import (
	"testing"
	"time"
)

func TestValidateTransactionType(t *testing.T) {
	tests := []struct {
		name  string
		typ   TransactionType
		valid bool
	}{
		{"income", TypeIncome, true},
		{"expense", TypeExpense, true},
		{"empty", TransactionType(""), false},
		{"unknown", TransactionType("transfer"), false},
		{"case sensitive", TransactionType("Income"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateTransactionType(tt.typ); got != tt.valid {
				t.Errorf("ValidateTransactionType(%q) = %v, want %v", tt.typ, got, tt.valid)
			}
		})
	}
}

func TestValidateBudgetPeriod(t *testing.T) {
	for _, p := range []BudgetPeriod{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear} {
		if !ValidateBudgetPeriod(p) {
			t.Errorf("ValidateBudgetPeriod(%q) = false, want true", p)
		}
	}
	if ValidateBudgetPeriod(BudgetPeriod("quarter")) {
		t.Error("ValidateBudgetPeriod(quarter) = true, want false")
	}
}

func TestTypeFromAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   TransactionType
	}{
		{-42.50, TypeExpense},
		{-0.01, TypeExpense},
		{0, TypeIncome},
		{100, TypeIncome},
	}

	for _, tt := range tests {
		if got := TypeFromAmount(tt.amount); got != tt.want {
			t.Errorf("TypeFromAmount(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestParsedTransactionValidate(t *testing.T) {
	valid := ParsedTransaction{
		Date:        time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local),
		Description: "Coffee Shop",
		Amount:      42.50,
		Currency:    "USD",
		Type:        TypeExpense,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*ParsedTransaction)
	}{
		{"zero date", func(p *ParsedTransaction) { p.Date = time.Time{} }},
		{"negative amount", func(p *ParsedTransaction) { p.Amount = -1 }},
		{"bad type", func(p *ParsedTransaction) { p.Type = "debit" }},
		{"bad currency", func(p *ParsedTransaction) { p.Currency = "US" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestCategoryIsTransferMarker(t *testing.T) {
	out := Category{ID: "c1", Name: TransferOutCategory, Type: TypeExpense}
	in := Category{ID: "c2", Name: TransferInCategory, Type: TypeIncome}
	groceries := Category{ID: "c3", Name: "Groceries", Type: TypeExpense}

	if !out.IsTransferMarker() || !in.IsTransferMarker() {
		t.Error("reserved transfer categories must be markers")
	}
	if groceries.IsTransferMarker() {
		t.Error("Groceries must not be a transfer marker")
	}
}
