package model

import "time"

// Dedup decision constants.
const (
	// DedupMethodFingerprint identifies exact fingerprint matching.
	DedupMethodFingerprint = "fingerprint_v1"
	DedupDecisionDuplicate = "DUPLICATE"
)

// DedupDecision is an immutable record of one detected duplicate.
type DedupDecision struct {
	CreatedAt     time.Time
	CaseID        string
	Decision      string
	Method        string
	Reason        string
	Key           []string
	ID            int64
	TransactionID int64
	DuplicateOf   int64
	Confidence    float64
}
