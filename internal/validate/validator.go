// Package validate checks a ledger snapshot for internal consistency:
// entity constraints, category references and transfer-pair symmetry.
package validate

import (
	"fmt"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// ValidationResult contains all errors and warnings found in one pass.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Valid reports whether no errors were found. Warnings do not fail
// validation.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidationError represents a consistency violation.
type ValidationError struct {
	Entity  string // "transaction", "category", "budget", "pair"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidateLedger checks transactions against the category list:
// per-entity constraints, referential integrity and pair symmetry.
func ValidateLedger(txns []domain.Transaction, categories []domain.Category) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	categoryByID := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		if c.Name == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "category",
				ID:      c.ID,
				Field:   "Name",
				Message: "category name cannot be empty",
			})
		}
		if !domain.ValidateTransactionType(c.Type) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "category",
				ID:      c.ID,
				Field:   "Type",
				Value:   string(c.Type),
				Message: fmt.Sprintf("invalid category type: %s (must be income or expense)", c.Type),
			})
		}
		if _, dup := categoryByID[c.ID]; dup {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "category",
				ID:      c.ID,
				Field:   "ID",
				Value:   c.ID,
				Message: "duplicate category ID",
			})
		}
		categoryByID[c.ID] = c
	}

	transactionIDs := make(map[string]bool, len(txns))
	pairs := make(map[string][]domain.Transaction)

	for _, txn := range txns {
		if txn.ID == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				Field:   "ID",
				Message: "transaction ID cannot be empty",
			})
		}
		if txn.Date.IsZero() {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Date",
				Message: "transaction date cannot be zero",
			})
		}
		if txn.Amount < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Amount",
				Value:   fmt.Sprintf("%f", txn.Amount),
				Message: "amount must be a non-negative magnitude",
			})
		}
		if !domain.ValidateTransactionType(txn.Type) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Type",
				Value:   string(txn.Type),
				Message: fmt.Sprintf("invalid transaction type: %s (must be income or expense)", txn.Type),
			})
		}
		if len(txn.Currency) != 3 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Currency",
				Value:   txn.Currency,
				Message: "currency must be a 3-letter code",
			})
		}

		if txn.CategoryID != "" {
			cat, ok := categoryByID[txn.CategoryID]
			if !ok {
				result.Errors = append(result.Errors, ValidationError{
					Entity:  "transaction",
					ID:      txn.ID,
					Field:   "CategoryID",
					Value:   txn.CategoryID,
					Message: fmt.Sprintf("references non-existent category: %s", txn.CategoryID),
				})
			} else if cat.Type != txn.Type {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Entity:  "transaction",
					ID:      txn.ID,
					Field:   "CategoryID",
					Value:   txn.CategoryID,
					Message: fmt.Sprintf("%s transaction categorized under %s category %q", txn.Type, cat.Type, cat.Name),
				})
			}
		}

		if txn.ID != "" {
			if transactionIDs[txn.ID] {
				result.Errors = append(result.Errors, ValidationError{
					Entity:  "transaction",
					ID:      txn.ID,
					Field:   "ID",
					Value:   txn.ID,
					Message: "duplicate transaction ID",
				})
			}
			transactionIDs[txn.ID] = true
		}

		if txn.PairID != "" {
			pairs[txn.PairID] = append(pairs[txn.PairID], txn)
		}
	}

	for pairID, members := range pairs {
		if len(members) != 2 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "pair",
				ID:      pairID,
				Field:   "PairID",
				Value:   pairID,
				Message: fmt.Sprintf("pair must link exactly 2 transactions, found %d", len(members)),
			})
			continue
		}

		var hasOut, hasIn bool
		for _, txn := range members {
			if cat, ok := categoryByID[txn.CategoryID]; ok {
				switch cat.Name {
				case domain.TransferOutCategory:
					hasOut = true
				case domain.TransferInCategory:
					hasIn = true
				}
			}
		}
		if !hasOut || !hasIn {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "pair",
				ID:      pairID,
				Field:   "CategoryID",
				Message: "pair must have one transfer-out and one transfer-in half",
			})
		}
	}

	return result
}

// ValidateBudget checks one budget definition.
func ValidateBudget(b domain.Budget, categories []domain.Category) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	if b.Amount <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "budget",
			ID:      b.ID,
			Field:   "Amount",
			Value:   fmt.Sprintf("%f", b.Amount),
			Message: "budget amount must be positive",
		})
	}
	if !domain.ValidateBudgetPeriod(b.Period) {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "budget",
			ID:      b.ID,
			Field:   "Period",
			Value:   string(b.Period),
			Message: fmt.Sprintf("invalid period: %s (must be day, week, month, or year)", b.Period),
		})
	}
	if len(b.Currency) != 3 {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "budget",
			ID:      b.ID,
			Field:   "Currency",
			Value:   b.Currency,
			Message: "settlement currency must be a 3-letter code",
		})
	}
	if b.StartDate.IsZero() {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "budget",
			ID:      b.ID,
			Field:   "StartDate",
			Message: "budget start date cannot be zero",
		})
	}
	if b.EndDate != nil && b.EndDate.Before(b.StartDate) {
		result.Errors = append(result.Errors, ValidationError{
			Entity: "budget",
			ID:     b.ID,
			Field:  "EndDate",
			Value:  b.EndDate.Format("2006-01-02"),
			Message: fmt.Sprintf("end date %s is before start date %s",
				b.EndDate.Format("2006-01-02"), b.StartDate.Format("2006-01-02")),
		})
	}
	if b.AlertThreshold < 0 || b.AlertThreshold > 100 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Entity:  "budget",
			ID:      b.ID,
			Field:   "AlertThreshold",
			Value:   fmt.Sprintf("%f", b.AlertThreshold),
			Message: "alert threshold outside [0,100] never or always alerts",
		})
	}

	found := false
	for _, c := range categories {
		if c.ID == b.CategoryID {
			found = true
			break
		}
	}
	if !found {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "budget",
			ID:      b.ID,
			Field:   "CategoryID",
			Value:   b.CategoryID,
			Message: fmt.Sprintf("references non-existent category: %s", b.CategoryID),
		})
	}

	return result
}
