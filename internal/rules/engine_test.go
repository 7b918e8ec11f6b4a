package rules

import (
	"testing"
	"time"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func txn(day string, amount float64, desc string) *model.Transaction {
	return &model.Transaction{
		ID:          1,
		CaseID:      "case-1",
		BookingDate: *datePtr(day),
		Amount:      amount,
		Currency:    "EUR",
		Purpose:     desc,
	}
}

func byRule(evals []model.RuleEvaluation) map[string]model.RuleEvaluation {
	m := make(map[string]model.RuleEvaluation, len(evals))
	for _, e := range evals {
		m[e.RuleID] = e
	}
	return m
}

func TestEngine_CutoffScenario(t *testing.T) {
	c := &model.Case{ID: "case-1", CutoffDate: datePtr("2025-02-01")}
	evals := NewEngine().Evaluate(txn("2025-01-10", -500, "Mahnung Ratenzahlung"), c, nil)

	require.Len(t, evals, 6)
	ids := make([]string, len(evals))
	for i, e := range evals {
		ids[i] = e.RuleID
		assert.Equal(t, Version, e.RuleVersion)
		assert.Equal(t, "case-1", e.CaseID)
		assert.Equal(t, int64(1), e.TransactionID)
		assert.GreaterOrEqual(t, e.Confidence, 0.0)
		assert.LessOrEqual(t, e.Confidence, 1.0)
	}
	assert.Equal(t, []string{"§130", "§131", "§132", "§133", "§134", "§135"}, ids)
	assert.Equal(t, ids, NewEngine().RuleIDs())

	p130 := byRule(evals)[RuleCongruent]
	assert.Greater(t, p130.Confidence, 0.0)
	assert.InDelta(t, 0.65, p130.Confidence, 1e-9)
	assert.Equal(t, model.DecisionHit, p130.Decision)
	assert.Contains(t, p130.Explanation, "22 days before petition")
	assert.Equal(t, "InsO §130 Abs. 1 S. 1 Nr. 2", p130.LegalBasis)
	require.NotNil(t, p130.LookbackStart)
	assert.Equal(t, "2024-11-03", p130.LookbackStart.Format("2006-01-02"))
	assert.Equal(t, "2025-02-01", p130.LookbackEnd.Format("2006-01-02"))
	assert.NotEmpty(t, p130.EvidencePresent)
}

func TestEngine_WindowBoundariesInclusive(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01")}
	e := NewEngine()

	tests := []struct {
		name   string
		day    string
		inside bool
	}{
		{"anchor day", "2025-02-01", true},
		{"exactly 90 days before", "2024-11-03", true},
		{"91 days before", "2024-11-02", false},
		{"after anchor", "2025-02-02", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := byRule(e.Evaluate(txn(tt.day, -100, ""), c, nil))[RuleCongruent]
			if tt.inside {
				assert.NotEqual(t, model.DecisionNoHit, got.Decision)
			} else {
				assert.Equal(t, model.DecisionNoHit, got.Decision)
			}
		})
	}
}

func TestEngine_NoAnchor(t *testing.T) {
	evals := NewEngine().Evaluate(txn("2025-01-10", -50000, "Schenkung Gesellschafterdarlehen Pfändung"), &model.Case{}, nil)

	require.Len(t, evals, 6)
	for _, e := range evals {
		assert.Equal(t, model.DecisionNoHit, e.Decision, e.RuleID)
		assert.Nil(t, e.LookbackStart, e.RuleID)
		assert.Nil(t, e.LookbackEnd, e.RuleID)
	}
}

func TestIncongruentRule(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01")}

	tests := []struct {
		name     string
		day      string
		desc     string
		decision model.Decision
		conf     float64
		basis    string
	}{
		{"last month", "2025-01-15", "Rechnung", model.DecisionHit, 0.35, "InsO §131 Abs. 1 Nr. 1"},
		{"three months plain", "2024-12-01", "Rechnung", model.DecisionNeedsReview, 0.2, "InsO §131 Abs. 1 Nr. 2/3"},
		{"three months enforcement", "2024-12-01", "Zahlung an Gerichtsvollzieher", model.DecisionHit, 0.5, "InsO §131 Abs. 1 Nr. 2/3"},
		{"cash payment", "2024-12-01", "Barauszahlung Kasse", model.DecisionNeedsReview, 0.4, "InsO §131 Abs. 1 Nr. 2/3"},
		{"cash compound", "2024-12-01", "Barzahlung", model.DecisionNeedsReview, 0.4, "InsO §131 Abs. 1 Nr. 2/3"},
		{"till compound", "2024-12-01", "Kassenzahlung Filiale", model.DecisionNeedsReview, 0.4, "InsO §131 Abs. 1 Nr. 2/3"},
		{"agreement is not cash", "2024-12-01", "Vereinbarung", model.DecisionNeedsReview, 0.2, "InsO §131 Abs. 1 Nr. 2/3"},
		{"available is not cash", "2024-12-01", "Betrag verfügbar", model.DecisionNeedsReview, 0.2, "InsO §131 Abs. 1 Nr. 2/3"},
		{"savings bank is not a till", "2024-12-01", "Überweisung Sparkasse", model.DecisionNeedsReview, 0.2, "InsO §131 Abs. 1 Nr. 2/3"},
		{"outside", "2024-06-01", "Pfändung", model.DecisionNoHit, 0.3, "InsO §131 Abs. 1 Nr. 2/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := incongruentRule{}.Evaluate(txn(tt.day, -100, tt.desc), c, nil)
			assert.Equal(t, tt.decision, got.Decision)
			assert.InDelta(t, tt.conf, got.Confidence, 1e-9)
			assert.Equal(t, tt.basis, got.LegalBasis)
		})
	}
}

func TestUnusualPaymentMethod(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Barzahlung", []string{"bar"}},
		{"BARAUSZAHLUNG", []string{"bar"}},
		{"Kassenzahlung", []string{"kasse"}},
		{"cash withdrawal", []string{"cash"}},
		{"Zahlung an Dritter", []string{"dritter"}},
		{"paid via third party", []string{"third party"}},
		{"Barzahlung Sparkasse Kassel", []string{"bar"}},
		{"Betrag verfügbar", nil},
		{"Ratenvereinbarung zahlbar sofort", nil},
		{"Beitrag Krankenkasse Barmer", nil},
		{"Barclays Card", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, unusualPaymentMethod(tt.text))
		})
	}
}

func TestPrejudicialRule(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01")}

	fee := prejudicialRule{}.Evaluate(txn("2025-01-15", -250, "Vertragsstrafe"), c, nil)
	assert.Equal(t, model.DecisionHit, fee.Decision)
	assert.InDelta(t, 0.7, fee.Confidence, 1e-9)

	inflow := prejudicialRule{}.Evaluate(txn("2025-01-15", 250, "Vertragsstrafe"), c, nil)
	assert.Equal(t, model.DecisionNeedsReview, inflow.Decision)
	assert.Empty(t, inflow.EvidenceMissing)
	assert.Contains(t, inflow.Explanation, "§132 decision=NEEDS_REVIEW confidence=0.300")
}

func TestIntentionalRule(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01")}
	related := &model.Counterparty{Name: "Gesellschafter", RelatedParty: model.RelatedYes}
	affiliate := &model.Counterparty{Name: "Schwester GmbH", Role: model.RoleAffiliate}

	large := txn("2024-12-01", -25000, "Überweisung")
	large.UserTags = []string{"Mahnung"}

	got := intentionalRule{}.Evaluate(large, c, related)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, model.DecisionHit, got.Decision)

	got = intentionalRule{}.Evaluate(txn("2022-06-01", -500, ""), c, affiliate)
	assert.InDelta(t, 0.45, got.Confidence, 1e-9)
	assert.Equal(t, model.DecisionNeedsReview, got.Decision)

	got = intentionalRule{}.Evaluate(txn("2020-01-01", -500, ""), c, related)
	assert.Equal(t, model.DecisionNoHit, got.Decision, "older than four years")
}

func TestGratuitousRule_UsesOpeningDate(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01"), OpeningDate: datePtr("2025-04-01")}

	got := gratuitousRule{}.Evaluate(txn("2025-03-15", -1000, "Schenkung an Verein"), c, nil)
	assert.Equal(t, model.DecisionHit, got.Decision)
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	assert.Equal(t, "2025-04-01", got.LookbackEnd.Format("2006-01-02"))

	got = gratuitousRule{}.Evaluate(txn("2025-03-15", -1000, "Miete"), c, nil)
	assert.Equal(t, model.DecisionNeedsReview, got.Decision)
}

func TestShareholderLoanRule(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01")}
	related := &model.Counterparty{Name: "Max Muster", RelatedParty: model.RelatedYes}

	got := shareholderLoanRule{}.Evaluate(txn("2024-06-01", -20000, "Rückzahlung Darlehen"), c, related)
	assert.Equal(t, model.DecisionHit, got.Decision)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)

	got = shareholderLoanRule{}.Evaluate(txn("2024-06-01", -20000, "Miete"), c, nil)
	assert.Equal(t, model.DecisionNeedsReview, got.Decision)
	assert.NotEmpty(t, got.EvidenceMissing)
}

func TestEngine_DoesNotMutateTransaction(t *testing.T) {
	c := &model.Case{FilingDate: datePtr("2025-02-01")}
	tx := txn("2025-01-10", -500, "Mahnung")
	before := *tx

	NewEngine().Evaluate(tx, c, nil)
	assert.Equal(t, before, *tx)
}

func TestDecide(t *testing.T) {
	assert.Equal(t, model.DecisionNoHit, decide(false, 0.9, 0.5))
	assert.Equal(t, model.DecisionNoHit, decide(true, 0, 0.5))
	assert.Equal(t, model.DecisionNeedsReview, decide(true, 0.49, 0.5))
	assert.Equal(t, model.DecisionHit, decide(true, 0.5, 0.5))
}
