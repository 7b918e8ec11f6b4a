package pipeline

import (
	"testing"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTags(t *testing.T) {
	txn := &model.Transaction{
		Amount:     -250,
		UserTags:   []string{"geprüft", "OUTFLOW"},
		SystemTags: []string{"ANFECHTUNG_§134", "CLAWBACK_CANDIDATE"},
	}
	evals := []model.RuleEvaluation{
		{RuleID: "§130", Decision: model.DecisionHit, Confidence: 0.65, Explanation: "hit"},
		{RuleID: "§131", Decision: model.DecisionNeedsReview, Confidence: 0.2, EvidenceMissing: []string{"invoice"}},
		{RuleID: "§132", Decision: model.DecisionNoHit},
	}

	deriveTags(txn, evals)

	assert.Equal(t, []string{"ANFECHTUNG_§130", "ANFECHTUNG_§131", TagClawbackCandidate, TagNeedsReview, TagOutflow}, txn.SystemTags,
		"stale tags from earlier runs are dropped")
	assert.Equal(t, []string{"ANFECHTUNG_§130", "ANFECHTUNG_§131", TagClawbackCandidate, TagNeedsReview, TagOutflow, "geprüft"}, txn.Tags)
	require.Len(t, txn.RuleHits, 2)
	assert.Equal(t, "§130", txn.RuleHits[0].RuleID)
	assert.Equal(t, []string{"invoice"}, txn.RuleHits[1].MissingEvidence)
}

func TestDeriveTags_NoFlags(t *testing.T) {
	txn := &model.Transaction{Amount: 10}
	deriveTags(txn, []model.RuleEvaluation{{RuleID: "§130", Decision: model.DecisionNoHit}})

	assert.Equal(t, []string{TagInflow}, txn.SystemTags)
	assert.Equal(t, []string{TagInflow}, txn.Tags)
	assert.Nil(t, txn.RuleHits)

	zero := &model.Transaction{}
	deriveTags(zero, nil)
	assert.Nil(t, zero.SystemTags)
	assert.Nil(t, zero.Tags)
}

func TestToggleReview(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		in   []string
		want []string
	}{
		{name: "set", tag: TagReviewConfirmed, in: []string{"geprüft"}, want: []string{TagReviewConfirmed, "geprüft"}},
		{name: "clear", tag: TagReviewConfirmed, in: []string{TagReviewConfirmed}, want: nil},
		{name: "switch", tag: TagReviewDismissed, in: []string{TagReviewConfirmed, "x"}, want: []string{TagReviewDismissed, "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToggleReview(tt.in, tt.tag))
		})
	}
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, cleanTags([]string{" b", "a", "", "b "}))
	assert.Nil(t, cleanTags(nil))
}
