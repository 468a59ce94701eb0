// Package report serializes the outcome of an import run for downstream
// tooling.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/transfer"
	"github.com/rumor-ml/commons.systems/finledger/internal/validate"
)

// FileImport is the per-file outcome of one run.
type FileImport struct {
	File       string `json:"file"`
	Parser     string `json:"parser"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	Error      string `json:"error,omitempty"`
}

// Report is the full outcome of one run.
type Report struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	User        string       `json:"user"`
	Imports     []FileImport `json:"imports,omitempty"`

	Budgets  []domain.BudgetProgress `json:"budgets,omitempty"`
	Pairs    []domain.TransferPair   `json:"transferPairs,omitempty"`
	Unlinked []domain.Transaction    `json:"unlinkedTransfers,omitempty"`

	Validation *validate.ValidationResult `json:"validation,omitempty"`
}

// AddTransfers copies a reconciliation report in.
func (r *Report) AddTransfers(t *transfer.Report) {
	if t == nil {
		return
	}
	r.Pairs = t.Pairs
	r.Unlinked = t.Unlinked
}

// Write serializes the report as indented JSON.
func Write(r *Report, w io.Writer) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}
	return nil
}

// WriteToFile writes the report to a file, or stdout when path is empty.
func WriteToFile(r *Report, path string) (err error) {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if path == "" {
		return Write(r, os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close report file %s: %w", path, closeErr)
		}
	}()

	if err = Write(r, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
