// Package testutil provides test utilities backed by a real, migrated SQLite store.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/Veraticus/clawback/internal/storage"
	"github.com/Veraticus/clawback/internal/testutil/cases"
)

// TestDB represents a test database with its seeded cases.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
	Cases   cases.Cases
}

// SetupTestDB creates a migrated database seeded with the cases of the given fixtures.
//
// Example:
//
//	db := testutil.SetupTestDB(t, cases.FixtureStandard)
func SetupTestDB(t *testing.T, fixtures ...cases.Fixture) *TestDB {
	t.Helper()
	return SetupTestDBWithBuilder(t, func(b cases.Builder) cases.Builder {
		for _, f := range fixtures {
			b = b.WithFixture(f)
		}
		return b
	})
}

// SetupTestDBWithBuilder creates a test database using a case builder.
func SetupTestDBWithBuilder(t *testing.T, configure func(cases.Builder) cases.Builder) *TestDB {
	t.Helper()

	builder := cases.NewBuilder()
	if configure != nil {
		builder = configure(builder)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	seeded, err := builder.Build(ctx, store)
	if err != nil {
		t.Fatalf("failed to build cases: %v", err)
	}

	return &TestDB{
		Storage: store,
		Cases:   seeded,
		t:       t,
	}
}

// MustCase returns the seeded case with the given id or fails the test.
func (db *TestDB) MustCase(id cases.CaseID) *model.Case {
	db.t.Helper()
	return db.Cases.MustFind(db.t, id)
}

// AddDocument registers a pending document for path under the case.
func (db *TestDB) AddDocument(caseID cases.CaseID, path string) *model.Document {
	db.t.Helper()
	doc := &model.Document{
		CaseID:   string(caseID),
		FileName: filepath.Base(path),
		FilePath: path,
	}
	if err := db.Storage.CreateDocument(context.Background(), doc); err != nil {
		db.t.Fatalf("failed to create document: %v", err)
	}
	return doc
}

// WithTransaction executes fn within a database transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
