package model

import "time"

// Transaction represents one financial movement normalized from a source row.
type Transaction struct {
	CreatedAt             time.Time
	BookingDate           time.Time
	ValueDate             *time.Time
	CounterpartyID        *int64
	DuplicateOf           *int64
	ClusterID             *int64
	CaseID                string
	SourceFile            string
	Currency              string
	DebtorIBAN            string
	CreditorIBAN          string
	DebtorName            string
	CreditorName          string
	CounterpartyNameRaw   string // Name as observed in the source before resolution
	Purpose               string
	RawDescription        string
	NormalizedDescription string
	EndToEndID            string
	BankReference         string
	Fingerprint           string
	SystemTags            []string
	UserTags              []string
	Tags                  []string // Combined system and user tags, sorted
	RuleHits              []RuleHit
	ID                    int64
	SourceDocumentID      int64
	Amount                float64
	IsDuplicate           bool
}

// TransactionDirection is derived from the sign of the amount.
type TransactionDirection string

// Direction constants.
const (
	DirectionInflow  TransactionDirection = "INFLOW"
	DirectionOutflow TransactionDirection = "OUTFLOW"
	DirectionNone    TransactionDirection = ""
)

// Direction reports whether money entered or left the debtor's account.
func (t *Transaction) Direction() TransactionDirection {
	switch {
	case t.Amount > 0:
		return DirectionInflow
	case t.Amount < 0:
		return DirectionOutflow
	default:
		return DirectionNone
	}
}

// Description returns the best available free text for keyword matching.
func (t *Transaction) Description() string {
	switch {
	case t.NormalizedDescription != "":
		return t.NormalizedDescription
	case t.Purpose != "":
		return t.Purpose
	default:
		return t.RawDescription
	}
}

// DisplayName returns the creditor name, falling back to the raw counterparty name.
func (t *Transaction) DisplayName() string {
	if t.CreditorName != "" {
		return t.CreditorName
	}
	return t.CounterpartyNameRaw
}

// HasTag reports whether the combined, system or user tag sets contain tag.
func (t *Transaction) HasTag(tag string) bool {
	for _, set := range [][]string{t.Tags, t.SystemTags, t.UserTags} {
		for _, existing := range set {
			if existing == tag {
				return true
			}
		}
	}
	return false
}

// RuleHit summarizes a HIT or NEEDS_REVIEW outcome on the transaction itself.
type RuleHit struct {
	RuleID          string   `json:"rule_id"`
	Decision        Decision `json:"decision"`
	Explanation     string   `json:"explanation"`
	MissingEvidence []string `json:"missing_evidence"`
	Confidence      float64  `json:"confidence"`
}
