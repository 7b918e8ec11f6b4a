package pipeline

import (
	"sort"

	"github.com/Veraticus/clawback/internal/model"
)

// System tags written by the pipeline.
const (
	TagInflow            = "INFLOW"
	TagOutflow           = "OUTFLOW"
	TagClawbackCandidate = "CLAWBACK_CANDIDATE"
	TagNeedsReview       = "NEEDS_REVIEW"
	tagAvoidancePrefix   = "ANFECHTUNG_"
)

// deriveTags recomputes system tags and rule hits from the evaluations of one
// transaction and merges them with the user's tags.
func deriveTags(txn *model.Transaction, evals []model.RuleEvaluation) {
	system := map[string]struct{}{}
	switch txn.Direction() {
	case model.DirectionInflow:
		system[TagInflow] = struct{}{}
	case model.DirectionOutflow:
		system[TagOutflow] = struct{}{}
	}

	var hits []model.RuleHit
	for _, e := range evals {
		if e.Decision != model.DecisionHit && e.Decision != model.DecisionNeedsReview {
			continue
		}
		system[tagAvoidancePrefix+e.RuleID] = struct{}{}
		if e.Decision == model.DecisionHit {
			system[TagClawbackCandidate] = struct{}{}
		} else {
			system[TagNeedsReview] = struct{}{}
		}
		hits = append(hits, model.RuleHit{
			RuleID:          e.RuleID,
			Decision:        e.Decision,
			Confidence:      e.Confidence,
			Explanation:     e.Explanation,
			MissingEvidence: e.EvidenceMissing,
		})
	}

	txn.SystemTags = sortedKeys(system)
	txn.RuleHits = hits
	txn.Tags = mergeTags(txn.SystemTags, txn.UserTags)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
