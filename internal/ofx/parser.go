// Package ofx imports bank and credit card statements in OFX/QFX format as
// expense transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/khata/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Options controls which statement lines become transactions.
type Options struct {
	// IncludeCredits imports deposits and refunds as well as debits.
	IncludeCredits bool
	// CategoryID is assigned to every imported transaction. Zero leaves
	// them uncategorized.
	CategoryID int
}

// Parser converts OFX statements into transactions.
type Parser struct {
	opts Options
}

// NewParser creates a new OFX parser.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Some SGML exports drop the closing bracket on bare tags.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file and returns its transactions.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var (
		transactions       []model.Transaction
		bankStmts, ccStmts int
		skipped            int
	)

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		txns, n := p.convertAll(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
		transactions = append(transactions, txns...)
		skipped += n
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		txns, n := p.convertAll(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
		transactions = append(transactions, txns...)
		skipped += n
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"skipped_credits", skipped,
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) convertAll(lines []ofxgo.Transaction, accountID string) ([]model.Transaction, int) {
	var (
		transactions []model.Transaction
		skipped      int
	)
	for _, line := range lines {
		tx, err := p.convertTransaction(line, accountID)
		if err != nil {
			slog.Warn("Skipping unreadable OFX transaction", "fitid", line.FiTID, "error", err)
			skipped++
			continue
		}
		if isCredit(line) && !p.opts.IncludeCredits {
			skipped++
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, skipped
}

// isCredit reports whether the statement line adds money to the account.
func isCredit(line ofxgo.Transaction) bool {
	return line.TrnAmt.Sign() > 0
}

// convertTransaction converts an OFX transaction to our model. Amounts are
// stored unsigned; OFX marks debits negative.
func (p *Parser) convertTransaction(line ofxgo.Transaction, accountID string) (model.Transaction, error) {
	amount, err := decimal.NewFromString(line.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	tx := model.Transaction{
		ID:          string(line.FiTID),
		Date:        line.DtPosted.UTC(),
		Description: extractDescription(line),
		Notes:       strings.TrimSpace(string(line.Memo)),
		Amount:      amount.Abs(),
		AccountID:   accountID,
		CategoryID:  p.opts.CategoryID,
		Active:      true,
	}
	if tx.Notes == tx.Description {
		tx.Notes = ""
	}
	if line.CheckNum != "" {
		tx.Notes = strings.TrimSpace(tx.Notes + " cheque " + string(line.CheckNum))
	}
	tx.Hash = tx.GenerateHash()

	return tx, nil
}

// extractDescription picks the most descriptive text from an OFX line.
func extractDescription(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"IBFT ",
		"FUNDS TRANSFER ",
		"BILL PAYMENT ",
	}
	upper := strings.ToUpper(name)
	for _, prefix := range prefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Drop a leading "MM/DD " date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "", "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE", "TRANSFER":
		return true
	}
	return false
}

// GetAccounts extracts unique account IDs from the OFX file, sorted.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	accountMap := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			accountMap[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			accountMap[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(accountMap))
	for acct := range accountMap {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
