package qif

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

func TestParse_SingleTransaction(t *testing.T) {
	input := "!Type:Bank\nD2024/01/15\nT-42.50\nPCoffee Shop\n^\n"

	p := NewParser()
	result, err := p.Parse(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	txns := result.Transactions()
	if len(txns) != 1 {
		t.Fatalf("Parse() returned %d transactions, want 1", len(txns))
	}

	tx := txns[0]
	want := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	if !tx.Date.Equal(want) {
		t.Errorf("Date = %v, want %v (noon local)", tx.Date, want)
	}
	if tx.Amount != 42.50 {
		t.Errorf("Amount = %v, want 42.50", tx.Amount)
	}
	if tx.Type != domain.TypeExpense {
		t.Errorf("Type = %q, want expense", tx.Type)
	}
	if tx.Description != "Coffee Shop" {
		t.Errorf("Description = %q, want Coffee Shop", tx.Description)
	}
	if tx.Hash == "" {
		t.Error("Hash must be populated")
	}
}

func TestParse_MemoFallback(t *testing.T) {
	tests := []struct {
		name  string
		lines string
		want  string
	}{
		{"memo wins", "D2024/01/15\nT-1\nPPayee\nMMemo text\n^", "Memo text"},
		{"empty memo falls back", "D2024/01/15\nT-1\nPPayee\n^", "Payee"},
		{"null placeholder falls back", "D2024/01/15\nT-1\nPPayee\nM(null)\n^", "Payee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			result, err := p.Parse(context.Background(), strings.NewReader("!Type:Bank\n"+tt.lines+"\n"), nil)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			txns := result.Transactions()
			if len(txns) != 1 {
				t.Fatalf("got %d transactions, want 1", len(txns))
			}
			if txns[0].Description != tt.want {
				t.Errorf("Description = %q, want %q", txns[0].Description, tt.want)
			}
		})
	}
}

func TestParse_TransferBrackets(t *testing.T) {
	input := "!Type:Bank\nD2024/02/01\nT-100.00\nPMove to savings\nL[Savings]\n^\n"

	p := NewParser()
	result, err := p.Parse(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	txns := result.Transactions()
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	tx := txns[0]
	if !tx.Transfer {
		t.Error("bracketed category must mark a transfer")
	}
	if tx.CounterAccount != "Savings" {
		t.Errorf("CounterAccount = %q, want Savings", tx.CounterAccount)
	}
	if tx.Category != "" {
		t.Errorf("Category = %q, want cleared", tx.Category)
	}
}

func TestParse_MultipleAccounts(t *testing.T) {
	input := strings.Join([]string{
		"!Account",
		"NChecking",
		"TBank",
		"^",
		"!Type:Bank",
		"D2024/01/15",
		"T-42.50",
		"PCoffee Shop",
		"^",
		"!Account",
		"NEmpty Account",
		"^",
		"!Type:Bank",
		"!Account",
		"NSavings",
		"^",
		"!Type:Bank",
		"D2024/01/16",
		"T500.00",
		"PSalary part",
		"^",
	}, "\n") + "\n"

	p := NewParser()
	result, err := p.Parse(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(result.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2 (accounts without transactions dropped)", len(result.Accounts))
	}
	if result.Accounts[0].Name != "Checking" || result.Accounts[1].Name != "Savings" {
		t.Errorf("account order = %q, %q; want Checking, Savings",
			result.Accounts[0].Name, result.Accounts[1].Name)
	}
	if result.Accounts[1].Transactions[0].Type != domain.TypeIncome {
		t.Error("positive amount must be income")
	}
}

func TestParse_MalformedRecordSkipped(t *testing.T) {
	input := strings.Join([]string{
		"!Type:Bank",
		"Dnot-a-date",
		"T-10.00",
		"PBad",
		"^",
		"D2024/01/15",
		"T-42.50",
		"PGood",
		"^",
	}, "\n") + "\n"

	p := NewParser()
	result, err := p.Parse(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := result.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1 (malformed record skipped)", got)
	}
	if result.Skipped != 1 || len(result.Warnings) != 1 {
		t.Errorf("Skipped = %d, Warnings = %d; want 1, 1", result.Skipped, len(result.Warnings))
	}
}

func TestParse_RecordWithoutDateIgnored(t *testing.T) {
	input := "!Type:Bank\nPDangling payee\n^\nD2024/01/15\nT-5\nPReal\n^\n"

	p := NewParser()
	result, err := p.Parse(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := result.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if result.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0 (dateless record is not a warning)", result.Skipped)
	}
}

func TestParse_NotQIF(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), strings.NewReader("just some text\nwith lines\n"), nil)
	if err == nil {
		t.Fatal("Parse() = nil error for non-QIF input, want ErrFormat")
	}
}

func TestCanParse(t *testing.T) {
	p := NewParser()
	if !p.CanParse("export.qif", nil) {
		t.Error("CanParse(.qif) = false, want true")
	}
	if !p.CanParse("export.txt", []byte("!Type:Bank\nD2024/01/15\n")) {
		t.Error("CanParse with !Type header = false, want true")
	}
	if p.CanParse("export.csv", []byte("Date,Amount\n")) {
		t.Error("CanParse(csv) = true, want false")
	}
}
