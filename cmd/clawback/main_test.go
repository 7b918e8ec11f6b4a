package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/clawback/internal/config"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/queue"
	"github.com/Veraticus/clawback/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `id: muster-2025
company_name: Muster Handel GmbH
court: AG Charlottenburg
filing_date: 2025-02-01
accounts:
  - account_number: DE12 5001 0517 0648 4898 90
documents:
  - path: konto.csv
  - path: missing.csv
`

const statementCSV = "Buchungstag;Empfänger;IBAN Gegenkonto;Verwendungszweck;Betrag;Währung\n" +
	"10.01.2025;ACME GmbH;DE89 3704 0044 0532 0130 00;Mahnung Rechnung 4711;-1.234,56;EUR\n" +
	"15.01.2025;Kunde AG;;Zahlung;500,00;EUR\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCaseWorkflow(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "clawback.db")
	manifest := filepath.Join(dir, "case.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "konto.csv"), []byte(statementCSV), 0o600))

	out, err := execute(t, "case", "import", manifest, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 new documents pending")

	out, err = execute(t, "case", "import", manifest, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 new documents pending", "import is idempotent")

	_, err = execute(t, "process", "--db", dbPath)
	require.Error(t, err)

	out, err = execute(t, "process", "--case", "muster-2025", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "konto.csv: 2 inserted")

	out, err = execute(t, "process", "--case", "muster-2025", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to process")

	out, err = execute(t, "case", "show", "muster-2025", "--flagged", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Muster Handel GmbH")
	assert.Contains(t, out, "ACME GmbH")
	assert.Contains(t, out, "§130")

	out, err = execute(t, "evaluate", "muster-2025", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 transactions evaluated")

	out, err = execute(t, "dedup", "muster-2025", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 new duplicates")

	out, err = execute(t, "review", "muster-2025", "--confirm", "1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Transaction 1 tagged [REVIEW_CONFIRMED]")

	_, err = execute(t, "review", "muster-2025", "--confirm", "1", "--dismiss", "2", "--db", dbPath)
	require.Error(t, err)
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "sweep.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate(ctx))

	m := &config.CaseManifest{ID: "case-1", CompanyName: "Muster GmbH", FilingDate: "2025-02-01"}
	c, err := m.Case()
	require.NoError(t, err)
	require.NoError(t, store.SaveCase(ctx, c))

	path := filepath.Join(dir, "konto.csv")
	require.NoError(t, os.WriteFile(path, []byte(statementCSV), 0o600))
	doc := &model.Document{CaseID: c.ID, FileName: "konto.csv", FilePath: path}
	require.NoError(t, store.CreateDocument(ctx, doc))

	q := queue.New(queue.Config{Workers: 1, Capacity: 4})
	q.Start(ctx)
	sw := &sweeper{store: store, orch: pipeline.New(store, pipeline.Config{}), queue: q, inFlight: map[int64]bool{}}

	sw.sweep(ctx)
	q.Drain()
	q.Stop()

	stored, err := store.GetDocument(ctx, c.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentDone, stored.Status)
	assert.Empty(t, sw.inFlight)
}
