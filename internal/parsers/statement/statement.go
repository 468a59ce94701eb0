// Package statement parses free-text lines extracted from statement
// documents, where no column alignment survives extraction.
//
// A transaction block looks like:
//
//	15.03.2024        date
//	09:10             time
//	545708******1234  noise: masked card number
//	Contract ...      noise: contract reference
//	42                noise: short numeric reference
//	from 01.01.2024   noise
//	COFFEE SHOP       description (one or more lines)
//	-120,50           amount, comma decimal, space-grouped thousands
//	UAH               bare currency code
//
// The failure unit is the single block: a corrupted block is logged and
// skipped, never the rest of the document.
package statement

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/dedup"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
)

// lookaheadLimit bounds how many lines past the description start a block
// may span before it is abandoned.
const lookaheadLimit = 20

var (
	dateRe = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

	// Structural boilerplate between the time line and the description.
	cardRe     = regexp.MustCompile(`^\d{6}\*+\d{4}$`)
	contractRe = regexp.MustCompile(`(?i)^contract\b`)
	refRe      = regexp.MustCompile(`^\d{1,4}$`)
	fromRe     = regexp.MustCompile(`(?i)^from \d{2}\.\d{2}\.\d{4}$`)

	amountOnlyRe = regexp.MustCompile(`^[-+]?\d+(\s\d{3})*,\d{2}$`)
	amountTailRe = regexp.MustCompile(`^(.+?)\s+([-+]?\d+(\s\d{3})*,\d{2})$`)
	currencyRe   = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Parser implements free-text statement parsing with a stateless design.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared statement parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "statement"
}

// CanParse checks for a text extension and at least one bare date line in
// the header sample.
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != "" {
		return false
	}
	for _, line := range strings.Split(string(header), "\n") {
		if dateRe.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// Parse scans the document for transaction blocks. Blank lines are dropped
// up front; extraction noise inserts them unpredictably and the grammar is
// defined over content lines.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading statement text: %v", parser.ErrFormat, err)
	}

	result := &parser.Result{}
	var txns []domain.ParsedTransaction

	i := 0
	for i < len(lines) {
		// Long documents stay cancellable between blocks.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !dateRe.MatchString(lines[i]) {
			i++
			continue
		}

		tx, next, err := p.scanBlock(lines, i)
		if err != nil {
			// Only this block is discarded; scanning resumes from
			// the line after the date.
			result.AddWarning(fmt.Sprintf("block at line %d: %v", i+1, err))
			i++
			continue
		}
		txns = append(txns, *tx)
		i = next
	}

	result.Accounts = []parser.Account{{Transactions: txns}}
	return result, nil
}

// isNoise reports whether a line is structural boilerplate, not description.
func isNoise(line string) bool {
	return cardRe.MatchString(line) ||
		contractRe.MatchString(line) ||
		refRe.MatchString(line) ||
		fromRe.MatchString(line)
}

// scanBlock parses one candidate block starting at the date line.
// On success it returns the transaction and the index to resume from.
func (p *Parser) scanBlock(lines []string, start int) (*domain.ParsedTransaction, int, error) {
	day, month, year := splitDate(lines[start])

	if start+1 >= len(lines) || !timeRe.MatchString(lines[start+1]) {
		return nil, 0, fmt.Errorf("date line not followed by a time line")
	}
	hour, minute := splitTime(lines[start+1])

	j := start + 2
	for j < len(lines) && isNoise(lines[j]) {
		j++
	}
	descStart := j

	var desc []string
	var amountStr string
	found := false
	for ; j < len(lines) && j < descStart+lookaheadLimit; j++ {
		line := lines[j]
		if amountOnlyRe.MatchString(line) {
			amountStr = line
			found = true
			j++
			break
		}
		if m := amountTailRe.FindStringSubmatch(line); m != nil {
			desc = append(desc, m[1])
			amountStr = m[2]
			found = true
			j++
			break
		}
		desc = append(desc, line)
	}
	if !found {
		return nil, 0, fmt.Errorf("no amount line within %d lines of description", lookaheadLimit)
	}

	if j >= len(lines) || !currencyRe.MatchString(lines[j]) {
		return nil, 0, fmt.Errorf("amount line not followed by a currency line")
	}
	currency := lines[j]

	signed, err := parseAmount(amountStr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	description := strings.TrimSpace(strings.TrimRight(strings.Join(desc, " "), ", "))
	if description == "" {
		return nil, 0, fmt.Errorf("block has no description")
	}

	tx := &domain.ParsedTransaction{
		Date:        time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local),
		Description: description,
		Amount:      abs(signed),
		Currency:    currency,
		Type:        domain.TypeFromAmount(signed),
	}
	tx.Hash = dedup.Fingerprint(tx.Date, tx.Description, tx.Amount, tx.Currency)
	return tx, j + 1, nil
}

// splitDate extracts day, month, year from a DD.MM.YYYY line that already
// matched dateRe.
func splitDate(line string) (day, month, year int) {
	parts := strings.Split(line, ".")
	day, _ = strconv.Atoi(parts[0])
	month, _ = strconv.Atoi(parts[1])
	year, _ = strconv.Atoi(parts[2])
	return
}

// splitTime extracts hour, minute from an HH:MM line that already matched
// timeRe.
func splitTime(line string) (hour, minute int) {
	parts := strings.Split(line, ":")
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return
}

// parseAmount converts the European numeric format: space-grouped thousands,
// comma decimal separator.
func parseAmount(s string) (float64, error) {
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
