package pipeline_test

import (
	"context"
	"testing"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/Veraticus/clawback/internal/testutil"
	"github.com/Veraticus/clawback/internal/testutil/cases"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetUserTags(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, cases.FixtureStandard)
	caseID := cases.CaseMuster.String()
	orch := pipeline.New(db.Storage, pipeline.Config{})

	doc := db.AddDocument(cases.CaseMuster, writeStatement(t, "konto.csv", statementCSV))
	_, err := orch.ProcessDocument(ctx, caseID, doc.ID)
	require.NoError(t, err)

	txns, err := db.Storage.ListTransactions(ctx, caseID, service.TransactionFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, txns)
	target := txns[0]
	require.NotEmpty(t, target.SystemTags)

	updated, err := orch.SetUserTags(ctx, caseID, target.ID, []string{pipeline.TagReviewConfirmed, " geprüft "})
	require.NoError(t, err)
	assert.Equal(t, []string{pipeline.TagReviewConfirmed, "geprüft"}, updated.UserTags)
	assert.Subset(t, updated.Tags, target.SystemTags)
	assert.Contains(t, updated.Tags, pipeline.TagReviewConfirmed)

	stored, err := db.Storage.GetTransaction(ctx, caseID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.UserTags, stored.UserTags)
	assert.Equal(t, target.SystemTags, stored.SystemTags)
	assert.Equal(t, target.RuleHits, stored.RuleHits)

	// Re-evaluation keeps the reviewer's tags.
	_, err = orch.EvaluateCase(ctx, caseID)
	require.NoError(t, err)
	stored, err = db.Storage.GetTransaction(ctx, caseID, target.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Tags, pipeline.TagReviewConfirmed)

	events, err := db.Storage.ListAuditEvents(ctx, caseID)
	require.NoError(t, err)
	var tagged []model.AuditEvent
	for _, e := range events {
		if e.Action == audit.ActionTransactionTagged {
			tagged = append(tagged, e)
		}
	}
	require.Len(t, tagged, 1)
	assert.Equal(t, model.ActorReviewer, tagged[0].Actor)

	_, err = orch.SetUserTags(ctx, caseID, 9999, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
