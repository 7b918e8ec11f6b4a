package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s, err := Load(v)
	require.NoError(t, err)

	assert.InDelta(t, 0.92, s.FuzzyThreshold, 1e-9)
	assert.Equal(t, 2, s.QueueWorkers)
	assert.Equal(t, 3, s.PDFSamplePages)
	assert.Equal(t, 50, s.PDFMinChars)
	assert.Equal(t, "Europe/Berlin", s.Location.String())
	assert.NotContains(t, s.DatabasePath, "$HOME")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"threshold above one", "resolver.fuzzy_threshold", 1.5},
		{"zero threshold", "resolver.fuzzy_threshold", 0.0},
		{"no workers", "queue.workers", 0},
		{"no capacity", "queue.capacity", 0},
		{"bad timezone", "scheduler.timezone", "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadCaseManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "case.yaml")
	content := `id: case-1
company_name: Muster GmbH
filing_date: 2025-02-01
accounts:
  - account_number: de89 3704 0044 0532 0130 00
documents:
  - path: jan.csv
    type: bank_statement
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := LoadCaseManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Documents, 1)

	c, err := m.Case()
	require.NoError(t, err)
	assert.Equal(t, "case-1", c.ID)
	require.NotNil(t, c.FilingDate)
	assert.Equal(t, "2025-02-01", c.FilingDate.Format("2006-01-02"))
	assert.Nil(t, c.OpeningDate)
	require.Len(t, c.Accounts, 1)
	assert.Equal(t, "DE89370400440532013000", c.Accounts[0].AccountNumber)
	assert.Equal(t, "EUR", c.Accounts[0].Currency)
}

func TestLoadCaseManifest_Invalid(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing-id.yaml")
	require.NoError(t, os.WriteFile(missing, []byte("company_name: X\n"), 0o600))
	_, err := LoadCaseManifest(missing)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	badDate := filepath.Join(dir, "bad-date.yaml")
	require.NoError(t, os.WriteFile(badDate, []byte("id: a\ncompany_name: X\nfiling_date: 01.02.2025\n"), 0o600))
	m, err := LoadCaseManifest(badDate)
	require.NoError(t, err)
	_, err = m.Case()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestResolveDocumentPath(t *testing.T) {
	t.Setenv("CASE_ROOT", "/srv/cases")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/data/muster", "konto.csv"), ResolveDocumentPath("/data/muster/case.yaml", "konto.csv"))
	assert.Equal(t, "/abs/konto.csv", ResolveDocumentPath("/data/muster/case.yaml", "/abs/konto.csv"))
	assert.Equal(t, "/srv/cases/konto.csv", ResolveDocumentPath("case.yaml", "$CASE_ROOT/konto.csv"))
	assert.Equal(t, filepath.Join(home, "muster", "konto.csv"), ResolveDocumentPath("~/muster/case.yaml", "konto.csv"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Empty(t, ResolveDocumentPath("case.yaml", ""))
}
