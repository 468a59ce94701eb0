// Package parser defines the strategy interface implemented by all import
// format parsers and the canonical result shape they produce.
package parser

import (
	"context"
	"errors"
	"io"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// ErrFormat marks input that cannot be interpreted as the parser's format at
// all. Single malformed records never produce it; they are skipped and
// counted on the Result instead.
var ErrFormat = errors.New("input does not match the declared format")

// Parser is the strategy interface for all import format parsers.
type Parser interface {
	// Name returns the parser identifier (e.g., "qif", "csv-mono").
	Name() string

	// CanParse checks if this parser should handle the file, based on its
	// path and the first bytes of content.
	CanParse(path string, header []byte) bool

	// Parse converts raw input into canonical parsed transactions.
	// A single malformed record is skipped and counted, never fatal;
	// Parse fails only when the input is not this format (ErrFormat) or
	// ctx is cancelled. Output order preserves input line order.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*Result, error)
}

// Account groups the transactions parsed for one source account. Formats
// without account sections produce a single entry whose name may be empty.
type Account struct {
	Name         string
	Transactions []domain.ParsedTransaction
}

// Result is the outcome of one parser invocation.
type Result struct {
	Accounts []Account

	// Skipped counts malformed records that were dropped.
	Skipped int
	// Warnings carries one human-readable line per skipped record.
	Warnings []string
}

// Transactions flattens all accounts into a single slice, preserving input
// order.
func (r *Result) Transactions() []domain.ParsedTransaction {
	var out []domain.ParsedTransaction
	for _, acc := range r.Accounts {
		out = append(out, acc.Transactions...)
	}
	return out
}

// Count returns the total number of parsed transactions.
func (r *Result) Count() int {
	n := 0
	for _, acc := range r.Accounts {
		n += len(acc.Transactions)
	}
	return n
}

// AddWarning records one skipped record.
func (r *Result) AddWarning(msg string) {
	r.Skipped++
	r.Warnings = append(r.Warnings, msg)
}
