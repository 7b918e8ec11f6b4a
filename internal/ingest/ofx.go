package ingest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/aclindsa/ofxgo"
)

// Columns produced for OFX statements.
var ofxHeaders = []string{"Date", "Amount", "Currency", "Name", "Description", "Reference", "IBAN"}

var (
	ofxSeverity = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	ofxOpenTag  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in bank exports.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = ofxSeverity.ReplaceAllStringFunc(content, strings.ToUpper)
	// SGML exports sometimes drop the closing bracket of bare tags
	return ofxOpenTag.ReplaceAllString(content, "$1>")
}

// loadOFX flattens bank and credit card statements into a table.
func loadOFX(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the document registry
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	t := &Table{Headers: ofxHeaders}
	var bankStmts, ccStmts int
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			appendOFXTransactions(t, stmt.BankTranList, currencyCode(stmt.CurDef, ""))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			appendOFXTransactions(t, stmt.BankTranList, currencyCode(stmt.CurDef, ""))
		}
	}

	common.LogDebug("parsed OFX file", common.Fields{
		"path":            path,
		"rows":            len(t.Rows),
		"bank_statements": bankStmts,
		"cc_statements":   ccStmts,
	})
	return t, nil
}

func appendOFXTransactions(t *Table, list *ofxgo.TransactionList, currency string) {
	if list == nil {
		return
	}
	for _, tx := range list.Transactions {
		amount, _ := tx.TrnAmt.Float64()
		cur := currency
		if tx.Currency != nil {
			cur = currencyCode(tx.Currency.CurSym, currency)
		}
		var account string
		if tx.BankAcctTo != nil {
			account = string(tx.BankAcctTo.AcctID)
		}
		t.Rows = append(t.Rows, []string{
			tx.DtPosted.Format(dateLayouts[2]),
			fmt.Sprintf("%.2f", amount),
			cur,
			ofxPayeeName(tx),
			strings.TrimSpace(string(tx.Memo)),
			string(tx.FiTID),
			account,
		})
	}
}

func ofxPayeeName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	return strings.TrimSpace(string(tx.Name))
}

func currencyCode(sym ofxgo.CurrSymbol, fallback string) string {
	if ok, _ := sym.Valid(); !ok || sym.String() == "XXX" {
		return fallback
	}
	return sym.String()
}
