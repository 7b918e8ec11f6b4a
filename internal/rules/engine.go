// Package rules evaluates insolvency avoidance heuristics (InsO §130 to §135)
// against individual transactions. Evaluation is pure: nothing is persisted
// and the transaction is never modified.
package rules

import (
	"math"
	"strings"
	"time"

	"github.com/Veraticus/clawback/internal/model"
)

// Version is recorded on every evaluation.
const Version = "1.0"

// Rule identifiers in evaluation order.
const (
	RuleCongruent     = "§130"
	RuleIncongruent   = "§131"
	RulePrejudicial   = "§132"
	RuleIntentional   = "§133"
	RuleGratuitous    = "§134"
	RuleShareholderLn = "§135"
)

// Rule evaluates one heuristic.
type Rule interface {
	ID() string
	Evaluate(txn *model.Transaction, c *model.Case, cp *model.Counterparty) model.RuleEvaluation
}

// Engine runs the fixed rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the six avoidance rules.
func NewEngine() *Engine {
	return &Engine{rules: []Rule{
		congruentRule{},
		incongruentRule{},
		prejudicialRule{},
		intentionalRule{},
		gratuitousRule{},
		shareholderLoanRule{},
	}}
}

// RuleIDs returns the identifiers of the configured rules in order.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID()
	}
	return ids
}

// Evaluate returns one result per rule, in rule order.
func (e *Engine) Evaluate(txn *model.Transaction, c *model.Case, cp *model.Counterparty) []model.RuleEvaluation {
	results := make([]model.RuleEvaluation, 0, len(e.rules))
	for _, r := range e.rules {
		eval := r.Evaluate(txn, c, cp)
		eval.CaseID = txn.CaseID
		eval.TransactionID = txn.ID
		eval.RuleID = r.ID()
		eval.RuleVersion = Version
		results = append(results, eval)
	}
	return results
}

// window is a lookback range [Start, End] ending at an anchor date.
type window struct {
	start, end *time.Time
	inside     bool
	daysBefore int
	hasAnchor  bool
}

// lookback places the booking date relative to anchor. Both bounds are inclusive.
func lookback(anchor *time.Time, booking time.Time, days int) window {
	if anchor == nil {
		return window{}
	}
	end := day(*anchor)
	start := end.AddDate(0, 0, -days)
	w := window{start: &start, end: &end, hasAnchor: true}
	if booking.IsZero() {
		return w
	}
	b := day(booking)
	w.daysBefore = int(end.Sub(b).Hours() / 24)
	w.inside = !b.Before(start) && !b.After(end)
	return w
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// score accumulates confidence and the four evidence lists.
type score struct {
	met        []model.Condition
	missing    []model.Condition
	present    []string
	absent     []string
	confidence float64
}

func (s *score) hit(name string, state model.ConditionState, detail string, weight float64) {
	s.met = append(s.met, model.Condition{Name: name, Met: state, Detail: detail})
	s.confidence += weight
}

func (s *score) miss(name string, state model.ConditionState) {
	s.missing = append(s.missing, model.Condition{Name: name, Met: state})
}

// value clamps confidence to [0,1] and rounds it to three places.
func (s *score) value() float64 {
	return math.Round(math.Min(math.Max(s.confidence, 0), 1)*1000) / 1000
}

// result grades the score. Outside the window, or without an anchor, nothing is a hit.
func (s *score) result(w window, threshold float64, legalBasis, explanation string) model.RuleEvaluation {
	conf := s.value()
	return model.RuleEvaluation{
		Decision:          decide(w.inside, conf, threshold),
		Confidence:        conf,
		LegalBasis:        legalBasis,
		Explanation:       explanation,
		LookbackStart:     w.start,
		LookbackEnd:       w.end,
		ConditionsMet:     s.met,
		ConditionsMissing: s.missing,
		EvidencePresent:   s.present,
		EvidenceMissing:   s.absent,
	}
}

func decide(inside bool, confidence, threshold float64) model.Decision {
	switch {
	case !inside || confidence == 0:
		return model.DecisionNoHit
	case confidence >= threshold:
		return model.DecisionHit
	default:
		return model.DecisionNeedsReview
	}
}

// matchKeywords returns the keywords contained in text, in list order.
func matchKeywords(text string, keywords []string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// hasAnyTag compares case-insensitively across combined, system and user tags.
func hasAnyTag(txn *model.Transaction, tags []string) bool {
	for _, set := range [][]string{txn.Tags, txn.SystemTags, txn.UserTags} {
		for _, existing := range set {
			for _, tag := range tags {
				if strings.EqualFold(existing, tag) {
					return true
				}
			}
		}
	}
	return false
}
