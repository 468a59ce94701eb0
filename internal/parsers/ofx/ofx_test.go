package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

const bankFixture = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240101120000
<LANGUAGE>ENG
<FI>
<ORG>TESTBANK
<FID>12345
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>9876543210
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101000000
<DTEND>20240131235959
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240105120000
<TRNAMT>-50.00
<FITID>TXN001
<NAME>Test Transaction 1
<MEMO>Coffee Shop
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240115120000
<TRNAMT>1000.00
<FITID>TXN002
<NAME>Paycheck
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2000.00
<DTASOF>20240131235959
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestParse_BankStatement(t *testing.T) {
	p := NewParser()
	result, err := p.Parse(context.Background(), strings.NewReader(bankFixture), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(result.Accounts) != 1 || result.Accounts[0].Name != "9876543210" {
		t.Fatalf("unexpected accounts: %+v", result.Accounts)
	}

	txns := result.Transactions()
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}

	debit := txns[0]
	if debit.Amount != 50 || debit.Type != domain.TypeExpense {
		t.Errorf("debit = amount %v type %q, want 50 expense", debit.Amount, debit.Type)
	}
	if debit.Description != "Test Transaction 1" {
		t.Errorf("Description = %q, want name field", debit.Description)
	}
	if debit.Currency != "USD" {
		t.Errorf("Currency = %q, want USD (CURDEF)", debit.Currency)
	}
	if debit.Hash == "" {
		t.Error("Hash must be populated")
	}

	credit := txns[1]
	if credit.Amount != 1000 || credit.Type != domain.TypeIncome {
		t.Errorf("credit = amount %v type %q, want 1000 income", credit.Amount, credit.Type)
	}
}

func TestParse_NotOFX(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), strings.NewReader("definitely not ofx"), nil)
	if err == nil {
		t.Fatal("Parse() = nil error for non-OFX input, want format error")
	}
}

func TestCanParse(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		header   string
		expected bool
	}{
		{"ofx with header marker", "test.ofx", "OFXHEADER:100\nDATA:OFXSGML\n", true},
		{"qfx with xml header", "test.qfx", "<?xml version=\"1.0\"?><?OFX OFXHEADER=\"200\"?>\n", true},
		{"ofx without marker", "test.ofx", "random text", false},
		{"wrong extension", "test.csv", "OFXHEADER:100\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			if got := p.CanParse(tt.path, []byte(tt.header)); got != tt.expected {
				t.Errorf("CanParse() = %v, want %v", got, tt.expected)
			}
		})
	}
}
