// Package bankcsv provides header-driven parsing of bank CSV exports.
//
// Bank specifics live entirely in a column Mapping; the shared row logic
// (date-time parsing, sign handling, fingerprinting, skip-and-continue)
// never changes when a new bank is added.
package bankcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/dedup"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
)

// defaultDateLayout is the combined date-time column format used by the
// built-in mapping.
const defaultDateLayout = "02.01.2006 15:04:05"

// Mapping describes one bank's CSV layout: which headers carry the required
// fields and which fixed currency the statement is in.
type Mapping struct {
	Name              string `yaml:"name"`
	DateHeader        string `yaml:"date_header"`
	DescriptionHeader string `yaml:"description_header"`
	AmountHeader      string `yaml:"amount_header"`
	DateLayout        string `yaml:"date_layout"`
	Currency          string `yaml:"currency"`
}

// Validate checks that the mapping is complete enough to drive a parse.
func (m *Mapping) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("mapping name cannot be empty")
	}
	if m.DateHeader == "" || m.DescriptionHeader == "" || m.AmountHeader == "" {
		return fmt.Errorf("mapping %q must name date, description and amount headers", m.Name)
	}
	if len(m.Currency) != 3 {
		return fmt.Errorf("mapping %q currency must be a 3-letter code, got %q", m.Name, m.Currency)
	}
	return nil
}

// MonoMapping returns the built-in mapping for the mono card CSV export.
func MonoMapping() Mapping {
	return Mapping{
		Name:              "mono",
		DateHeader:        "Date and time",
		DescriptionHeader: "Description",
		AmountHeader:      "Card currency amount, (UAH)",
		DateLayout:        defaultDateLayout,
		Currency:          "UAH",
	}
}

// Parser parses one bank's CSV export according to its Mapping.
type Parser struct {
	mapping Mapping
}

// NewParser creates a CSV parser for the given mapping.
func NewParser(m Mapping) (*Parser, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.DateLayout == "" {
		m.DateLayout = defaultDateLayout
	}
	return &Parser{mapping: m}, nil
}

// Name returns the parser identifier, e.g. "csv-mono".
func (p *Parser) Name() string {
	return "csv-" + p.mapping.Name
}

// CanParse checks extension and that the header row carries the mapped
// columns.
func (p *Parser) CanParse(path string, header []byte) bool {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return false
	}

	r := csv.NewReader(strings.NewReader(string(header)))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil {
		return false
	}
	_, err = p.resolveColumns(record)
	return err == nil
}

// columns holds the resolved indexes of the required fields.
type columns struct {
	date        int
	description int
	amount      int
}

// resolveColumns maps the header row onto the mapping's column names.
func (p *Parser) resolveColumns(header []string) (*columns, error) {
	cols := &columns{date: -1, description: -1, amount: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case p.mapping.DateHeader:
			cols.date = i
		case p.mapping.DescriptionHeader:
			cols.description = i
		case p.mapping.AmountHeader:
			cols.amount = i
		}
	}
	if cols.date < 0 || cols.description < 0 || cols.amount < 0 {
		return nil, fmt.Errorf("header is missing required columns for mapping %q", p.mapping.Name)
	}
	return cols, nil
}

// Parse reads the CSV and returns canonical transactions in row order.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading CSV content: %v", parser.ErrFormat, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%w: CSV file is empty", parser.ErrFormat)
	}

	cols, err := p.resolveColumns(records[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", parser.ErrFormat, err)
	}

	result := &parser.Result{}
	var txns []domain.ParsedTransaction
	for i, record := range records[1:] {
		rowNo := i + 2
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		tx, err := p.parseRow(record, cols)
		if err != nil {
			// A row missing a required field is skipped with a
			// warning; parsing continues.
			result.AddWarning(fmt.Sprintf("row %d: %v", rowNo, err))
			continue
		}
		txns = append(txns, *tx)
	}

	result.Accounts = []parser.Account{{Transactions: txns}}
	return result, nil
}

// parseRow converts one data row into a canonical transaction.
func (p *Parser) parseRow(record []string, cols *columns) (*domain.ParsedTransaction, error) {
	max := cols.date
	if cols.description > max {
		max = cols.description
	}
	if cols.amount > max {
		max = cols.amount
	}
	if len(record) <= max {
		return nil, fmt.Errorf("row has %d fields, need at least %d", len(record), max+1)
	}

	dateStr := strings.TrimSpace(record[cols.date])
	date, err := time.ParseInLocation(p.mapping.DateLayout, dateStr, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date-time %q: %w", dateStr, err)
	}

	description := strings.TrimSpace(record[cols.description])
	if description == "" {
		return nil, fmt.Errorf("description is empty")
	}

	amountStr := strings.TrimSpace(record[cols.amount])
	signed, err := parseAmount(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	tx := &domain.ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      abs(signed),
		Currency:    p.mapping.Currency,
		Type:        domain.TypeFromAmount(signed),
	}
	tx.Hash = dedup.Fingerprint(tx.Date, tx.Description, tx.Amount, tx.Currency)
	return tx, nil
}

// parseAmount accepts both dot and comma decimal separators and ignores
// space grouping.
func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
