package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/shopspring/decimal"
)

// Column synonyms, in priority order. German bank exports first.
var (
	dateColumns         = []string{"Buchungstag", "Buchungsdatum", "Date", "Datum", "transaction_date"}
	amountColumns       = []string{"Betrag", "Umsatz", "Amount", "amount"}
	currencyColumns     = []string{"Währung", "Waehrung", "Currency", "currency"}
	descriptionColumns  = []string{"Verwendungszweck", "Buchungsdetails", "Description", "Zweck", "transaction_description"}
	counterpartyColumns = []string{"Empfänger", "Empfänger/Zahlungspflichtiger", "Auftraggeber/Empfänger", "counterparty", "recipient_name", "Name"}
	ibanColumns         = []string{"IBAN Gegenkonto", "Kontonummer/IBAN", "IBAN", "recipient_account"}
	valueDateColumns    = []string{"Valutadatum", "Wertstellung", "value_date", "Value Date", "Valuta"}
	debtorIBANColumns   = []string{"Auftraggeber IBAN", "Debtor IBAN", "Zahlungspflichtiger IBAN", "DebtorAccount"}
	creditorIBANColumns = []string{"Empfänger IBAN", "Creditor IBAN", "Beguenstigter IBAN", "recipient_account", "IBAN Gegenkonto"}
	debtorNameColumns   = []string{"Auftraggeber", "Zahlungspflichtiger", "Debtor Name", "Debtor"}
	creditorNameColumns = []string{"Empfänger", "Beguenstigter", "Creditor Name", "Creditor", "Name"}
	endToEndColumns     = []string{"End-to-End-Referenz", "EndToEnd", "End-to-End", "EndToEndId", "E2E"}
	bankRefColumns      = []string{"Kundenreferenz", "Bankreferenz", "Mandatsreferenz", "Reference", "Bank Reference"}
)

// NormalizeOptions carries document context applied to every row.
type NormalizeOptions struct {
	CaseID          string
	SourceFile      string
	DefaultAccount  string
	DefaultCurrency string
	DocumentID      int64
}

// NormalizeStats counts rows seen and skipped.
type NormalizeStats struct {
	Rows    int
	Skipped int
}

// columnMap holds resolved column indices; -1 means absent.
type columnMap struct {
	date, amount, currency, description, counterparty, iban, valueDate    int
	debtorIBAN, creditorIBAN, debtorName, creditorName, endToEnd, bankRef int
}

func mapColumns(t *Table) (columnMap, error) {
	cols := columnMap{
		date:         t.Column(dateColumns...),
		amount:       t.Column(amountColumns...),
		currency:     t.Column(currencyColumns...),
		description:  t.Column(descriptionColumns...),
		counterparty: t.Column(counterpartyColumns...),
		iban:         t.Column(ibanColumns...),
		valueDate:    t.Column(valueDateColumns...),
		debtorIBAN:   t.Column(debtorIBANColumns...),
		creditorIBAN: t.Column(creditorIBANColumns...),
		debtorName:   t.Column(debtorNameColumns...),
		creditorName: t.Column(creditorNameColumns...),
		endToEnd:     t.Column(endToEndColumns...),
		bankRef:      t.Column(bankRefColumns...),
	}
	if cols.date < 0 || cols.amount < 0 {
		return cols, fmt.Errorf("%w. Have: [%s]", common.ErrUnmappableColumns, strings.Join(t.Headers, ", "))
	}
	return cols, nil
}

// Normalizer maps loaded tables onto canonical transactions.
type Normalizer struct{}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts table rows into transactions with fingerprints. Rows
// without a parseable date or amount are skipped and counted.
func (n *Normalizer) Normalize(t *Table, opts NormalizeOptions) ([]model.Transaction, NormalizeStats, error) {
	var stats NormalizeStats
	if t == nil || len(t.Headers) == 0 {
		return nil, stats, fmt.Errorf("%w. Have: []", common.ErrUnmappableColumns)
	}
	cols, err := mapColumns(t)
	if err != nil {
		return nil, stats, err
	}

	currency := opts.DefaultCurrency
	if currency == "" {
		currency = model.DefaultCurrency
	}
	defaultAccount := NormalizeIBAN(opts.DefaultAccount)

	txns := make([]model.Transaction, 0, t.Len())
	for i := range t.Rows {
		stats.Rows++
		txn, ok := n.normalizeRow(t, i, cols, opts, currency, defaultAccount)
		if !ok {
			stats.Skipped++
			continue
		}
		txns = append(txns, txn)
	}
	return txns, stats, nil
}

func (n *Normalizer) normalizeRow(t *Table, i int, cols columnMap, opts NormalizeOptions, currency, defaultAccount string) (model.Transaction, bool) {
	booking, ok := parseCellDate(t.Value(i, cols.date))
	if !ok {
		return model.Transaction{}, false
	}
	amount, ok := parseCellAmount(t.Value(i, cols.amount))
	if !ok {
		return model.Transaction{}, false
	}

	purpose := CleanText(t.Value(i, cols.description))
	recipientName := CleanText(t.Value(i, cols.counterparty))
	recipientAccount := NormalizeIBAN(t.Value(i, cols.iban))

	txn := model.Transaction{
		CaseID:                opts.CaseID,
		SourceDocumentID:      opts.DocumentID,
		SourceFile:            opts.SourceFile,
		BookingDate:           booking,
		Amount:                amount.Round(2).InexactFloat64(),
		Currency:              currency,
		Purpose:               purpose,
		RawDescription:        purpose,
		NormalizedDescription: purpose,
		EndToEndID:            strings.TrimSpace(t.Value(i, cols.endToEnd)),
		BankReference:         strings.TrimSpace(t.Value(i, cols.bankRef)),
	}

	if v := strings.ToUpper(strings.TrimSpace(t.Value(i, cols.currency))); v != "" {
		txn.Currency = v
	}
	if vd, ok := parseCellDate(t.Value(i, cols.valueDate)); ok {
		txn.ValueDate = &vd
	}

	if cols.debtorIBAN >= 0 {
		txn.DebtorIBAN = NormalizeIBAN(t.Value(i, cols.debtorIBAN))
	} else {
		txn.DebtorIBAN = defaultAccount
	}
	if cols.creditorIBAN >= 0 {
		txn.CreditorIBAN = NormalizeIBAN(t.Value(i, cols.creditorIBAN))
	} else {
		txn.CreditorIBAN = recipientAccount
	}
	txn.DebtorName = CleanText(t.Value(i, cols.debtorName))
	if cols.creditorName >= 0 {
		txn.CreditorName = CleanText(t.Value(i, cols.creditorName))
	} else {
		txn.CreditorName = recipientName
	}

	txn.CounterpartyNameRaw = txn.CreditorName
	if txn.CounterpartyNameRaw == "" {
		txn.CounterpartyNameRaw = recipientName
	}

	txn.Fingerprint = txn.GenerateFingerprint()
	return txn, true
}

// parseCellAmount accepts German notation and falls back to plain floats.
func parseCellAmount(raw string) (decimal.Decimal, bool) {
	if d, ok := ParseAmount(raw); ok {
		return d, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
