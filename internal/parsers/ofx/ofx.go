// Package ofx provides OFX/QFX import parsing.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/rumor-ml/commons.systems/finledger/internal/dedup"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
)

// Parser implements OFX/QFX parsing with a stateless design. Safe for
// concurrent use; all behavior is determined by the file content and
// optional Metadata.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks extension and OFX header markers (both SGML and XML
// variants).
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts canonical transactions from an OFX/QFX file.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX content: %w", err)
	}

	// ofxgo.ParseResponse does not support cancellation; this check only
	// catches cancellation between read and parse.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing OFX file (%d bytes): %v", parser.ErrFormat, len(content), err)
	}

	if len(response.CreditCard) > 0 {
		return p.parseCreditCard(response)
	}
	if len(response.Bank) > 0 {
		return p.parseBank(response)
	}
	return nil, fmt.Errorf("%w: no bank or credit card statement in OFX file", parser.ErrFormat)
}

func (p *Parser) parseCreditCard(resp *ofxgo.Response) (*parser.Result, error) {
	stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected credit card statement type %T", parser.ErrFormat, resp.CreditCard[0])
	}
	if stmt.BankTranList == nil {
		return nil, fmt.Errorf("%w: missing transaction list in credit card statement", parser.ErrFormat)
	}
	return p.buildResult(stmt.CCAcctFrom.AcctID.String(), stmt.CurDef.String(), stmt.BankTranList)
}

func (p *Parser) parseBank(resp *ofxgo.Response) (*parser.Result, error) {
	stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected bank statement type %T", parser.ErrFormat, resp.Bank[0])
	}
	if stmt.BankTranList == nil {
		return nil, fmt.Errorf("%w: missing transaction list in bank statement", parser.ErrFormat)
	}
	return p.buildResult(stmt.BankAcctFrom.AcctID.String(), stmt.CurDef.String(), stmt.BankTranList)
}

// buildResult converts an OFX transaction list, skipping malformed records.
func (p *Parser) buildResult(accountID, currency string, list *ofxgo.TransactionList) (*parser.Result, error) {
	if currency == "" {
		currency = "USD"
	}

	result := &parser.Result{}
	var txns []domain.ParsedTransaction
	for i, txn := range list.Transactions {
		tx, err := extractTransaction(txn, currency)
		if err != nil {
			result.AddWarning(fmt.Sprintf("transaction %d: %v", i, err))
			continue
		}
		txns = append(txns, *tx)
	}

	result.Accounts = []parser.Account{{Name: accountID, Transactions: txns}}
	return result, nil
}

// extractTransaction converts one OFX transaction to the canonical shape.
func extractTransaction(txn ofxgo.Transaction, currency string) (*domain.ParsedTransaction, error) {
	// Posted date preferred, user date as fallback.
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("missing both posted date and user date")
	}
	// Hashing works on local wall clock; OFX datetimes carry their own
	// offset.
	date = date.In(time.Local)

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		return nil, fmt.Errorf("missing both name and memo")
	}

	signed, _ := txn.TrnAmt.Float64()

	tx := &domain.ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      abs(signed),
		Currency:    currency,
		Type:        domain.TypeFromAmount(signed),
	}
	tx.Hash = dedup.Fingerprint(tx.Date, tx.Description, tx.Amount, tx.Currency)
	return tx, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
