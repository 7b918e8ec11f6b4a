package counterparty_test

import (
	"context"
	"testing"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/counterparty"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/testutil"
	"github.com/Veraticus/clawback/internal/testutil/cases"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ACME GmbH", "acme"},
		{"Acme Gesellschaft mit beschränkter Haftung", "acme"},
		{"Müller & Söhne KG", "mueller soehne"},
		{"Straßenbau e.V.", "strassenbau"},
		{"  Foo   Bar   AG ", "foo bar"},
		{"Bau S.A.", "bau"},
		{"GmbH", "gmbh"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, counterparty.NormalizeName(tt.input))
		})
	}
}

func TestNormalizeAccount(t *testing.T) {
	assert.Equal(t, "DE89370400440532013000", counterparty.NormalizeAccount(" de89 3704 0044 0532 0130 00"))
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, cases.FixtureStandard)
	caseID := cases.CaseMuster.String()
	r := counterparty.NewResolver(0)

	t.Run("empty inputs", func(t *testing.T) {
		cp, err := r.Resolve(ctx, db.Storage, caseID, "  ", "")
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	acme, err := r.Resolve(ctx, db.Storage, caseID, "ACME GmbH", "")
	require.NoError(t, err)
	require.NotNil(t, acme)
	assert.Equal(t, "acme", acme.NameNorm)
	assert.Equal(t, model.MatchCreated, acme.MatchedBy)

	t.Run("legal form variant resolves to same counterparty", func(t *testing.T) {
		cp, err := r.Resolve(ctx, db.Storage, caseID, "Acme Gesellschaft mit beschränkter Haftung", "DE89 3704 0044 0532 0130 00")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, cp.ID)
		assert.Equal(t, model.MatchExactName, cp.MatchedBy)
		assert.Contains(t, cp.Aliases, "Acme Gesellschaft mit beschränkter Haftung")
		assert.Equal(t, "DE89370400440532013000", cp.AccountNumber, "account back-filled")
	})

	t.Run("account wins over name", func(t *testing.T) {
		cp, err := r.Resolve(ctx, db.Storage, caseID, "Completely Different", "DE89370400440532013000")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, cp.ID)
	})

	t.Run("fuzzy match above threshold", func(t *testing.T) {
		base, err := r.Resolve(ctx, db.Storage, caseID, "Schneider Logistik", "")
		require.NoError(t, err)

		cp, err := r.Resolve(ctx, db.Storage, caseID, "Schnieder Logistik GmbH", "")
		require.NoError(t, err)
		assert.Equal(t, base.ID, cp.ID)
		assert.Equal(t, model.MatchFuzzyName, cp.MatchedBy)
		assert.GreaterOrEqual(t, cp.MatchScore, counterparty.DefaultThreshold)
	})

	t.Run("dissimilar name creates new counterparty", func(t *testing.T) {
		cp, err := r.Resolve(ctx, db.Storage, caseID, "Finanzamt Berlin", "")
		require.NoError(t, err)
		assert.NotEqual(t, acme.ID, cp.ID)
	})

	all, err := db.Storage.ListCounterparties(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	events, err := db.Storage.ListAuditEvents(ctx, caseID)
	require.NoError(t, err)
	actions := map[string]int{}
	for _, e := range events {
		actions[e.Action]++
	}
	assert.Equal(t, 3, actions[audit.ActionCounterpartyCreated])
	assert.Equal(t, 1, actions[audit.ActionCounterpartyFuzzy])
}

func TestResolver_Threshold(t *testing.T) {
	ctx := context.Background()
	caseID := cases.CaseMuster.String()

	strict := testutil.SetupTestDB(t, cases.FixtureStandard)
	loose := testutil.SetupTestDB(t, cases.FixtureStandard)

	for _, db := range []*testutil.TestDB{strict, loose} {
		_, err := counterparty.NewResolver(0).Resolve(ctx, db.Storage, caseID, "Nordsee Fisch", "")
		require.NoError(t, err)
	}

	a, err := counterparty.NewResolver(0.99).Resolve(ctx, strict.Storage, caseID, "Nordsee Fische", "")
	require.NoError(t, err)
	assert.Equal(t, model.MatchCreated, a.MatchedBy, "raising the threshold never merges more")

	b, err := counterparty.NewResolver(0.8).Resolve(ctx, loose.Storage, caseID, "Nordsee Fische", "")
	require.NoError(t, err)
	assert.Equal(t, model.MatchFuzzyName, b.MatchedBy)
}

func TestNewResolver_DefaultThreshold(t *testing.T) {
	assert.InDelta(t, counterparty.DefaultThreshold, counterparty.NewResolver(-1).Threshold, 1e-9)
	assert.InDelta(t, counterparty.DefaultThreshold, counterparty.NewResolver(1.5).Threshold, 1e-9)
	assert.InDelta(t, 0.8, counterparty.NewResolver(0.8).Threshold, 1e-9)
}
