// Package qif parses QIF interchange files into canonical transactions.
//
// QIF is line oriented: structural markers (!Account, !Type:*, ^) switch the
// state machine, everything else is a single-letter field code followed by
// its value. Account header fields (N, T) appear between !Account and the
// next !Type marker; transaction fields (D, T, P, M, L) appear after it.
package qif

import (
	"bufio"
	"context"
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

// defaultCurrency is used when neither the file nor the metadata declares
// one; QIF itself carries no currency information.
const defaultCurrency = "USD"

const dateLayout = "2006/01/02"

// nullMemo is the literal placeholder some exporters write for empty memos.
const nullMemo = "(null)"

// Parser implements QIF parsing with a stateless design. Safe for concurrent
// use; all state lives in the per-call scanner below.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared QIF parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "qif"
}

// CanParse checks extension and the presence of QIF structural markers.
func (p *Parser) CanParse(path string, header []byte) bool {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".qif" {
		return true
	}
	head := string(header)
	return strings.Contains(head, "!Type:") || strings.Contains(head, "!Account")
}

// parserState tracks which block the state machine is inside.
type parserState int

const (
	stateAccountHeader parserState = iota // between !Account and !Type
	stateTransactions                     // after a !Type marker
)

// record accumulates one transaction's field lines until ^.
type record struct {
	date     string
	amount   string
	payee    string
	memo     string
	category string
}

func (r *record) reset() {
	*r = record{}
}

// Parse runs the line state machine over the whole input.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	currency := defaultCurrency
	if meta != nil && meta.Currency() != "" {
		currency = meta.Currency()
	}

	result := &parser.Result{}
	state := stateTransactions
	sawMarker := false

	// Accounts accumulate in encounter order; the anonymous account ""
	// collects transactions seen before any !Account section.
	accountOrder := []string{""}
	accounts := map[string][]domain.ParsedTransaction{"": nil}
	current := ""

	var rec record
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case line == "!Account":
			sawMarker = true
			state = stateAccountHeader
			rec.reset()
			continue
		case strings.HasPrefix(line, "!Type:"):
			sawMarker = true
			state = stateTransactions
			rec.reset()
			continue
		case strings.HasPrefix(line, "!"):
			// Unknown header (!Option, !Clear), ignored.
			sawMarker = true
			continue
		case line == "^":
			sawMarker = true
			if state == stateAccountHeader {
				// End of the account header; transactions that
				// follow belong to this account.
				state = stateTransactions
				continue
			}
			if rec.date == "" {
				rec.reset()
				continue
			}
			tx, err := finalize(&rec, currency)
			if err != nil {
				result.AddWarning(fmt.Sprintf("line %d: %v", lineNo, err))
			} else {
				accounts[current] = append(accounts[current], *tx)
			}
			rec.reset()
			continue
		}

		if len(line) < 1 {
			continue
		}
		code, value := line[0], strings.TrimSpace(line[1:])

		if state == stateAccountHeader {
			// N names the account; T is the account type, unused.
			if code == 'N' {
				current = value
				if _, ok := accounts[current]; !ok {
					accountOrder = append(accountOrder, current)
					accounts[current] = nil
				}
			}
			continue
		}

		switch code {
		case 'D':
			rec.date = value
		case 'T':
			rec.amount = value
		case 'P':
			rec.payee = value
		case 'M':
			rec.memo = value
		case 'L':
			rec.category = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading QIF input: %w", err)
	}

	if !sawMarker {
		return nil, fmt.Errorf("%w: no QIF markers found", parser.ErrFormat)
	}

	// Only accounts with at least one transaction are kept.
	for _, name := range accountOrder {
		if txns := accounts[name]; len(txns) > 0 {
			result.Accounts = append(result.Accounts, parser.Account{
				Name:         name,
				Transactions: txns,
			})
		}
	}
	return result, nil
}

// finalize converts an accumulated record into a canonical transaction.
func finalize(rec *record, currency string) (*domain.ParsedTransaction, error) {
	date, err := time.ParseInLocation(dateLayout, rec.date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", rec.date, err)
	}
	// Noon local avoids date-boundary drift when downstream code truncates
	// the time of day.
	date = time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.Local)

	signed, err := parseAmount(rec.amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", rec.amount, err)
	}

	description := rec.memo
	if description == "" || description == nullMemo {
		description = rec.payee
	}

	tx := &domain.ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      abs(signed),
		Currency:    currency,
		Type:        domain.TypeFromAmount(signed),
		Category:    rec.category,
	}

	// A bracketed category names the counter-account of a transfer and is
	// not a spending category.
	if strings.HasPrefix(rec.category, "[") && strings.HasSuffix(rec.category, "]") {
		tx.Transfer = true
		tx.CounterAccount = strings.TrimSuffix(strings.TrimPrefix(rec.category, "["), "]")
		tx.Category = ""
	}

	tx.Hash = dedup.Fingerprint(tx.Date, tx.Description, tx.Amount, tx.Currency)
	return tx, nil
}

// parseAmount handles QIF amounts with optional thousands commas.
func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
