package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
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
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
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
<CURDEF>PKR
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>0011223344
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<TRNAMT>-8000.00
<FITID>2025011501
<NAME>BILL PAYMENT LESCO
<MEMO>MONTHLY ELECTRICITY BILL
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250120120000[0:GMT]
<TRNAMT>-25000.50
<FITID>2025012001
<NAME>TRANSFER
<MEMO>STAFF MONTHLY SALARY
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20250125120000[0:GMT]
<TRNAMT>-85000.00
<FITID>2025012501
<CHECKNUM>1234
<NAME>OFFICE RENT
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250128120000[0:GMT]
<TRNAMT>150000.00
<FITID>2025012801
<NAME>CLIENT RECEIPT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
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
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>PKR
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250110120000[0:GMT]
<TRNAMT>-4599.99
<FITID>CC2025011001
<NAME>POS PURCHASE SHELL PETROL
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<TRNAMT>-1500.00
<FITID>CC2025011501
<NAME>JAZZ MOBILE
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		opts          Options
		expectedCount int
		expectedError bool
	}{
		{
			name:          "bank statement skips credits",
			ofxData:       sampleBankOFX,
			expectedCount: 3,
		},
		{
			name:          "bank statement with credits",
			ofxData:       sampleBankOFX,
			opts:          Options{IncludeCredits: true},
			expectedCount: 4,
		},
		{
			name:          "credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 2,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(tt.opts)
			transactions, err := parser.ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, transactions, tt.expectedCount)
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	parser := NewParser(Options{CategoryID: 11})

	transactions, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	bill := transactions[0]
	assert.Equal(t, "2025011501", bill.ID)
	assert.Equal(t, "LESCO", bill.Description)
	assert.Equal(t, "MONTHLY ELECTRICITY BILL", bill.Notes)
	assert.Equal(t, "8000.00", bill.Amount.StringFixed(2))
	assert.Equal(t, "0011223344", bill.AccountID)
	assert.Equal(t, 11, bill.CategoryID)
	assert.True(t, bill.Active)
	assert.Equal(t, time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC), bill.Date)
	assert.Equal(t, bill.GenerateHash(), bill.Hash)

	salary := transactions[1]
	assert.Equal(t, "STAFF MONTHLY SALARY", salary.Description, "generic name falls back to memo")
	assert.Equal(t, "25000.50", salary.Amount.StringFixed(2))

	rent := transactions[2]
	assert.Equal(t, "OFFICE RENT", rent.Description)
	assert.Equal(t, "cheque 1234", rent.Notes)
}

func TestParseCreditCardTransactions(t *testing.T) {
	parser := NewParser(Options{})

	transactions, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	assert.Equal(t, "CC2025011001", transactions[0].ID)
	assert.Equal(t, "SHELL PETROL", transactions[0].Description)
	assert.Equal(t, "4599.99", transactions[0].Amount.String())
	assert.Equal(t, "4111111111111111", transactions[0].AccountID)
	assert.Zero(t, transactions[0].CategoryID)

	assert.Equal(t, "JAZZ MOBILE", transactions[1].Description)
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name     string
		tx       ofxgo.Transaction
		expected string
	}{
		{
			name:     "payee wins",
			tx:       ofxgo.Transaction{Name: "IBFT 12345", Payee: &ofxgo.Payee{Name: "K-Electric"}},
			expected: "K-Electric",
		},
		{
			name:     "prefix stripped",
			tx:       ofxgo.Transaction{Name: "IBFT SNGPL GAS"},
			expected: "SNGPL GAS",
		},
		{
			name:     "leading date stripped",
			tx:       ofxgo.Transaction{Name: "03/14 PTCL BROADBAND"},
			expected: "PTCL BROADBAND",
		},
		{
			name:     "generic name uses memo",
			tx:       ofxgo.Transaction{Name: "PAYMENT", Memo: "WATER BILL"},
			expected: "WATER BILL",
		},
		{
			name:     "plain name kept",
			tx:       ofxgo.Transaction{Name: "  Hospital  "},
			expected: "Hospital",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDescription(tt.tx))
		})
	}
}

func TestPreprocessOFX(t *testing.T) {
	p := NewParser(Options{})
	out := p.preprocessOFX("\n\n  <SEVERITY>Warn</SEVERITY>\n<BANKID\n")
	assert.Equal(t, "<SEVERITY>WARN</SEVERITY>\n<BANKID>\n", out)
}

func TestGetAccounts(t *testing.T) {
	parser := NewParser(Options{})

	accounts, err := parser.GetAccounts(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"0011223344"}, accounts)

	accounts, err = parser.GetAccounts(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"4111111111111111"}, accounts)
}
