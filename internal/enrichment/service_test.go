package enrichment_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/counterparty"
	"github.com/Veraticus/clawback/internal/enrichment"
	"github.com/Veraticus/clawback/internal/enrichment/mock_enrichment"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/testutil"
	"github.com/Veraticus/clawback/internal/testutil/cases"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCounterparties(t *testing.T, db *testutil.TestDB, names ...string) {
	t.Helper()
	r := counterparty.NewResolver(0)
	for _, name := range names {
		_, err := r.Resolve(context.Background(), db.Storage, cases.CaseMuster.String(), name, "")
		require.NoError(t, err)
	}
}

func TestService_EnrichCase(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, cases.FixtureStandard)
	caseID := cases.CaseMuster.String()
	seedCounterparties(t, db, "Max Muster", "Muster Logistik GmbH", "Erika Muster", "Stadtwerke Berlin")

	ctrl := gomock.NewController(t)
	provider := mock_enrichment.NewMockProvider(ctrl)
	provider.EXPECT().
		Enrich(gomock.Any(), "Muster Handel GmbH").
		Return(enrichment.Profile{
			LegalName:    "Muster Handel GmbH",
			Shareholders: []string{"Max Muster"},
			Management:   []string{"Erika Muster", "Max Muster"},
			Affiliates:   []string{"Muster Logistik"},
			Sources:      []string{"handelsregister"},
		}, nil)

	summary, err := enrichment.NewService(db.Storage, provider).EnrichCase(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Checked)
	assert.Equal(t, 3, summary.Flagged)

	cps, err := db.Storage.ListCounterparties(ctx, caseID)
	require.NoError(t, err)
	byName := map[string]model.Counterparty{}
	for _, cp := range cps {
		byName[cp.Name] = cp
	}

	assert.Equal(t, model.RoleShareholder, byName["Max Muster"].Role, "shareholder wins over management")
	assert.Equal(t, model.RoleManagement, byName["Erika Muster"].Role)
	assert.Equal(t, model.RoleAffiliate, byName["Muster Logistik GmbH"].Role)
	logistik := byName["Muster Logistik GmbH"]
	assert.True(t, logistik.IsRelatedParty())

	other := byName["Stadtwerke Berlin"]
	assert.Equal(t, model.RoleUnknown, other.Role)
	assert.Equal(t, model.RelatedUnknown, other.RelatedParty)
	assert.Equal(t, enrichment.StatusCompleted, other.EnrichmentStatus)
	assert.Equal(t, []string{"handelsregister"}, other.EnrichmentSources)

	events, err := db.Storage.ListAuditEvents(ctx, caseID)
	require.NoError(t, err)
	var enriched int
	for _, e := range events {
		if e.Action == audit.ActionCounterpartyEnriched {
			enriched++
		}
	}
	assert.Equal(t, 4, enriched)
}

func TestService_EnrichCase_ProviderError(t *testing.T) {
	db := testutil.SetupTestDB(t, cases.FixtureStandard)
	seedCounterparties(t, db, "Max Muster")

	ctrl := gomock.NewController(t)
	provider := mock_enrichment.NewMockProvider(ctrl)
	provider.EXPECT().Enrich(gomock.Any(), gomock.Any()).Return(enrichment.Profile{}, errors.New("register offline"))

	_, err := enrichment.NewService(db.Storage, provider).EnrichCase(context.Background(), cases.CaseMuster.String())
	require.ErrorContains(t, err, "register offline")

	cps, err := db.Storage.ListCounterparties(context.Background(), cases.CaseMuster.String())
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Empty(t, cps[0].EnrichmentStatus)
}

func TestService_EnrichCase_Noop(t *testing.T) {
	db := testutil.SetupTestDB(t, cases.FixtureStandard)
	seedCounterparties(t, db, "Max Muster")

	summary, err := enrichment.NewService(db.Storage, nil).EnrichCase(context.Background(), cases.CaseMuster.String())
	require.NoError(t, err)
	assert.Equal(t, "Muster Handel GmbH", summary.LegalName)
	assert.Equal(t, 1, summary.Checked)
	assert.Zero(t, summary.Flagged)
	assert.Equal(t, []string{enrichment.SourceManual}, summary.Sources)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hrb_number: HRB 12345\nshareholders:\n  - Max Muster\n"), 0o600))

	profile, err := enrichment.FileProvider{Path: path}.Enrich(context.Background(), "Muster Handel GmbH")
	require.NoError(t, err)
	assert.Equal(t, "Muster Handel GmbH", profile.LegalName)
	assert.Equal(t, "HRB 12345", profile.HRBNumber)
	assert.Equal(t, []string{"Max Muster"}, profile.Shareholders)
	assert.Equal(t, []string{enrichment.SourceManual}, profile.Sources)

	_, err = enrichment.FileProvider{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Enrich(context.Background(), "x")
	assert.Error(t, err)
}
