// Package model defines the core domain models used throughout the application.
package model

import "time"

// Decision is the graded outcome of one rule against one transaction.
type Decision string

// Decision constants.
const (
	DecisionHit         Decision = "HIT"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
	DecisionNoHit       Decision = "NO_HIT"
)

// ConditionState is the tri-state-plus value of a legal condition.
type ConditionState string

// Condition states.
const (
	ConditionYes     ConditionState = "yes"
	ConditionNo      ConditionState = "no"
	ConditionAssumed ConditionState = "assumed"
	ConditionUnknown ConditionState = "unknown"
)

// Condition is one legal prerequisite checked by a rule.
type Condition struct {
	Name   string         `json:"condition"`
	Met    ConditionState `json:"met"`
	Detail string         `json:"detail,omitempty"`
}

// RuleEvaluation is the outcome of one rule for one transaction.
type RuleEvaluation struct {
	CreatedAt         time.Time
	LookbackStart     *time.Time
	LookbackEnd       *time.Time
	CaseID            string
	RuleID            string
	RuleVersion       string
	Decision          Decision
	Explanation       string
	LegalBasis        string
	ConditionsMet     []Condition
	ConditionsMissing []Condition
	EvidencePresent   []string
	EvidenceMissing   []string
	TransactionID     int64
	Confidence        float64
}

// IsFlagged reports whether the evaluation should surface to a reviewer.
func (r *RuleEvaluation) IsFlagged() bool {
	return r.Decision == DecisionHit || r.Decision == DecisionNeedsReview
}
