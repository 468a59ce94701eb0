// Package domain defines the canonical transaction shapes shared by parsers,
// the duplicate filter, categorization and reconciliation.
package domain

import (
	"fmt"
	"time"
)

// TransactionType represents the direction of a transaction.
// Use ValidateTransactionType to ensure validity before use.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// BudgetPeriod represents the recurrence period of a budget.
type BudgetPeriod string

const (
	PeriodDay   BudgetPeriod = "day"
	PeriodWeek  BudgetPeriod = "week"
	PeriodMonth BudgetPeriod = "month"
	PeriodYear  BudgetPeriod = "year"
)

// Reserved category names marking the two halves of a transfer pair.
// Categories with these names are immutable system categories.
const (
	TransferOutCategory = "Transfer Out"
	TransferInCategory  = "Transfer In"
)

var (
	validTypes = map[TransactionType]struct{}{
		TypeIncome: {}, TypeExpense: {},
	}

	validPeriods = map[BudgetPeriod]struct{}{
		PeriodDay: {}, PeriodWeek: {}, PeriodMonth: {}, PeriodYear: {},
	}
)

// ValidateTransactionType returns true if t is a known transaction type.
func ValidateTransactionType(t TransactionType) bool {
	_, ok := validTypes[t]
	return ok
}

// ValidateBudgetPeriod returns true if p is a known budget period.
func ValidateBudgetPeriod(p BudgetPeriod) bool {
	_, ok := validPeriods[p]
	return ok
}

// TypeFromAmount derives the transaction type from a signed source amount.
// The sign is consumed here; callers store the magnitude.
func TypeFromAmount(signed float64) TransactionType {
	if signed < 0 {
		return TypeExpense
	}
	return TypeIncome
}

// ParsedTransaction is the canonical parser output, independent of source
// format. It lives only for the duration of one import call.
//
// Date is a local wall-clock instant. Amount is a non-negative magnitude; the
// original sign has already been folded into Type. Hash is the content
// fingerprint used by the duplicate filter.
type ParsedTransaction struct {
	Date        time.Time
	Description string
	Amount      float64
	Currency    string
	Type        TransactionType
	Hash        string

	// Source hints, populated only when the format carries them.
	// Category is the source-declared category name (QIF L field).
	// Transfer marks a counter-account movement; CounterAccount names the
	// other side ([Account] bracket syntax in QIF).
	Category       string
	Transfer       bool
	CounterAccount string
}

// Validate checks the parsed-transaction invariants.
func (p *ParsedTransaction) Validate() error {
	if p.Date.IsZero() {
		return fmt.Errorf("date cannot be zero")
	}
	if p.Amount < 0 {
		return fmt.Errorf("amount must be non-negative, got %v", p.Amount)
	}
	if !ValidateTransactionType(p.Type) {
		return fmt.Errorf("invalid transaction type %q", p.Type)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", p.Currency)
	}
	return nil
}

// Transaction is a persisted ledger transaction, owned by the Ledger Store.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	AccountID   string          `json:"accountId"`
	CategoryID  string          `json:"categoryId"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	Type        TransactionType `json:"type"`
	Tags        []string        `json:"tags,omitempty"`

	// PairID links exactly one transfer-out and one transfer-in transaction.
	// Empty when the transaction is not half of a transfer pair.
	PairID string `json:"pairId,omitempty"`

	// ExchangeRate is the amount of base currency per 1 unit of the
	// transaction currency, captured at creation time. Immutable once
	// written; 0 means no rate was recorded.
	ExchangeRate float64 `json:"exchangeRate,omitempty"`

	// Fee is an optional fee in the transaction currency.
	Fee float64 `json:"fee,omitempty"`

	ExcludeFromAnalytics bool `json:"excludeFromAnalytics,omitempty"`
}

// Category is a spending or income category.
type Category struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Type TransactionType `json:"type"`
}

// IsTransferMarker reports whether the category is one of the two reserved
// system transfer categories.
func (c *Category) IsTransferMarker() bool {
	return c.Name == TransferOutCategory || c.Name == TransferInCategory
}

// Budget is a spending target for one category over a recurring period.
type Budget struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	CategoryID string       `json:"categoryId"`
	Amount     float64      `json:"amount"`
	Currency   string       `json:"currency"` // settlement currency
	Period     BudgetPeriod `json:"period"`
	StartDate  time.Time    `json:"startDate"`
	// EndDate absent (nil) means the budget is ongoing and evaluation
	// treats the end as "now".
	EndDate        *time.Time `json:"endDate,omitempty"`
	AlertThreshold float64    `json:"alertThreshold"` // percent
}

// BudgetProgress is the evaluated state of a budget over its window.
type BudgetProgress struct {
	BudgetID     string  `json:"budgetId"`
	Spent        float64 `json:"spent"`
	Remaining    float64 `json:"remaining"`
	Percentage   int     `json:"percentage"`
	IsOverBudget bool    `json:"isOverBudget"`
	ShouldAlert  bool    `json:"shouldAlert"`
}

// TransferPair is the derived reconciliation view of one linked transfer.
// It is recomputed on every reconciliation pass and never persisted; its only
// identity is the pair of transaction ids it was derived from.
type TransferPair struct {
	PairID string `json:"pairId"`
	OutID  string `json:"outId"`
	InID   string `json:"inId"`

	SentAmount       float64 `json:"sentAmount"`
	SentCurrency     string  `json:"sentCurrency"`
	ReceivedAmount   float64 `json:"receivedAmount"`
	ReceivedCurrency string  `json:"receivedCurrency"`

	SentBase     float64 `json:"sentBase"`
	ReceivedBase float64 `json:"receivedBase"`
	FeeBase      float64 `json:"feeBase"`

	Diff    float64 `json:"diff"`
	DiffPct float64 `json:"diffPct"`

	// ActualRate is received/sent when the currencies differ, 0 otherwise.
	ActualRate float64 `json:"actualRate"`
	// MarketRate is derived from the two recorded exchange rates; 0 when
	// either rate is missing or the currencies match.
	MarketRate float64 `json:"marketRate"`
}

// ImportResult summarizes one import call for the caller.
type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}
