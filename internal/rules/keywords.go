package rules

import "strings"

// Fixed vocabularies matched case-insensitively against the transaction description.
var (
	enforcementKeywords = []string{
		"pfändung", "vollstreckung", "gerichtsvollzieher", "zwangsvollstreckung",
		"mahnbescheid", "vollstreckungsbescheid", "bailiff", "garnishment",
		"inkasso", "arrest",
	}

	crisisKeywords = []string{
		"mahnung", "zahlungserinnerung", "ratenzahlung", "stundung",
		"rücklastschrift", "nicht eingelöst", "bounced", "zahlungsunfähig",
		"insolvenz", "krise", "liquiditätsengpass",
	}

	gratuitousKeywords = []string{
		"schenkung", "donation", "gift", "erlass", "verzicht",
		"unentgeltlich", "gratuitous", "ohne gegenleistung",
	}

	shareholderLoanKeywords = []string{
		"gesellschafterdarlehen", "shareholder loan", "darlehen gesellschafter",
		"rückzahlung darlehen", "loan repayment",
	}

	prejudiceKeywords = []string{"strafe", "penalty", "gebühr", "fee", "donation", "spende", "fine"}

	// crisisTags are tag values that signal a known payment crisis.
	crisisTags = []string{"crisis", "overdue", "collection", "mahnung"}
)

// unusualMethodKeywords name payment channels atypical for ordinary settlement.
// They match as substrings so compounds like "Barzahlung" or "Kassenbeleg" count.
var unusualMethodKeywords = []string{"bar", "cash", "kasse", "dritter", "third party"}

// unusualMethodExclusions blanks out common words that merely contain a keyword.
var unusualMethodExclusions = strings.NewReplacer(
	"sparkasse", " ",
	"krankenkasse", " ",
	"kassel", " ",
	"verfügbar", " ",
	"vereinbar", " ",
	"zahlbar", " ",
	"unmittelbar", " ",
	"nachbar", " ",
	"barcode", " ",
	"barclays", " ",
	"barmer", " ",
)

// unusualPaymentMethod returns the unusual-method keywords found in text.
func unusualPaymentMethod(text string) []string {
	return matchKeywords(unusualMethodExclusions.Replace(strings.ToLower(text)), unusualMethodKeywords)
}
