// Package counterparty resolves raw payer and payee names to stable identities within a case.
package counterparty

import (
	"regexp"
	"strings"
)

var (
	umlauts     = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// legalForms are tokens dropped from names before comparison.
var legalForms = map[string]struct{}{
	"gmbh": {}, "mbh": {}, "ag": {}, "kg": {}, "ug": {}, "ohg": {}, "gbr": {},
	"ev": {}, "spzoo": {}, "spolka": {}, "sa": {}, "llc": {}, "ltd": {}, "inc": {},
	"gesellschaft": {}, "mit": {}, "beschraenkter": {}, "beschrankter": {}, "haftung": {},
}

// NormalizeName reduces a company name to a comparison key: lower case,
// transliterated umlauts, no punctuation and no legal-form tokens.
// A name consisting only of legal-form tokens keeps them.
func NormalizeName(name string) string {
	s := umlauts.Replace(strings.ToLower(strings.TrimSpace(name)))
	// "e.V." and "S.A." collapse to single tokens
	s = strings.ReplaceAll(s, ".", "")
	s = punctuation.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := legalForms[tok]; !ok {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return strings.Join(tokens, " ")
	}
	return strings.Join(kept, " ")
}

// NormalizeAccount removes whitespace and upper-cases an account number.
func NormalizeAccount(account string) string {
	return strings.ToUpper(strings.Join(strings.Fields(account), ""))
}
