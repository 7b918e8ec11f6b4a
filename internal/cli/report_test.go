package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/clawback/internal/dedup"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCaseSummary(t *testing.T) {
	filing := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	c := &model.Case{ID: "muster-2025", CompanyName: "Muster Handel GmbH", FilingDate: &filing}
	s := &service.CaseSummary{
		DocumentsByStatus: map[model.DocumentStatus]int{model.DocumentDone: 2, model.DocumentFailed: 1},
		FlaggedByRule:     map[string]int{"§130": 4},
		Transactions:      12,
		Duplicates:        3,
		Counterparties:    5,
	}

	out := RenderCaseSummary(c, s)
	assert.Contains(t, out, "muster-2025")
	assert.Contains(t, out, "Muster Handel GmbH")
	assert.Contains(t, out, "01.02.2025")
	assert.Contains(t, out, "12 (3 duplicates)")
	assert.Contains(t, out, "§130")
}

func TestRenderResult(t *testing.T) {
	out := RenderResult("konto.csv", &pipeline.Result{
		Status:         model.DocumentDone,
		DetectedFormat: "bank_statement_csv",
		Inserted:       10,
		Skipped:        1,
		Dedup:          dedup.Stats{Duplicates: 2},
		Evaluated:      8,
	})
	assert.Contains(t, out, "10 inserted, 1 skipped, 2 duplicates, 8 evaluated")

	out = RenderResult("scan.pdf", &pipeline.Result{Status: model.DocumentOCRRequired})
	assert.Contains(t, out, "clawback ocr")
}

func TestRenderFlagged(t *testing.T) {
	assert.Contains(t, RenderFlagged(nil, nil), "No flagged transactions")

	txns := map[int64]model.Transaction{
		1: {ID: 1, BookingDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Amount: -500, Currency: "EUR", CreditorName: "ACME"},
	}
	evals := []model.RuleEvaluation{
		{TransactionID: 1, RuleID: "§131", Decision: model.DecisionNeedsReview, Confidence: 0.2},
		{TransactionID: 1, RuleID: "§130", Decision: model.DecisionHit, Confidence: 0.65},
		{TransactionID: 1, RuleID: "§134", Decision: model.DecisionNoHit},
		{TransactionID: 9, RuleID: "§133", Decision: model.DecisionHit, Confidence: 0.6},
	}

	out := RenderFlagged(evals, txns)
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "-500.00 EUR")
	assert.NotContains(t, out, "§134")
	require.Contains(t, out, "§130")
	assert.Less(t, strings.Index(out, "§130"), strings.Index(out, "§133"), "sorted by confidence")
	assert.Less(t, strings.Index(out, "§133"), strings.Index(out, "§131"))
}

func TestNewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, 2, "Processing documents...")
	require.NoError(t, bar.Add(2))
	assert.True(t, bar.IsFinished())
}
