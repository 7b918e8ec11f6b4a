package model

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCurrency is assumed when neither the row nor the case supplies one.
const DefaultCurrency = "EUR"

// FingerprintKey returns the normalized tuple the fingerprint is computed over.
// The order and casing are part of the stored-fingerprint contract.
func (t *Transaction) FingerprintKey() []string {
	date := ""
	if !t.BookingDate.IsZero() {
		date = t.BookingDate.Format("2006-01-02")
	}

	currency := strings.ToUpper(strings.TrimSpace(t.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	name := t.CreditorName
	if strings.TrimSpace(name) == "" {
		name = t.CounterpartyNameRaw
	}

	return []string{
		date,
		FormatAmount(t.Amount),
		currency,
		strings.ToUpper(strings.TrimSpace(t.DebtorIBAN)),
		strings.ToUpper(strings.TrimSpace(t.CreditorIBAN)),
		strings.ToLower(strings.TrimSpace(name)),
		strings.ToLower(strings.TrimSpace(t.Purpose)),
		strings.ToUpper(strings.TrimSpace(t.EndToEndID)),
	}
}

// GenerateFingerprint creates the identity hash used for cross-source deduplication.
func (t *Transaction) GenerateFingerprint() string {
	hash := sha256.Sum256([]byte(strings.Join(t.FingerprintKey(), "|")))
	return fmt.Sprintf("%x", hash)
}

// FormatAmount renders an amount with exactly two decimals, rounding the
// exact binary value half-to-even. Negative amounts that round to zero keep
// their sign ("-0.00"); stored fingerprints depend on this output.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
