package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// inTx runs fn in its own database transaction.
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q queryable) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) Savepoint(ctx context.Context, name string) error {
	if err := validateSavepoint(name); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}
	return nil
}

// RollbackTo undoes everything since the savepoint and releases it.
func (t *sqliteTransaction) RollbackTo(ctx context.Context, name string) error {
	if err := validateSavepoint(name); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to roll back to savepoint %s: %w", name, err)
	}
	return t.Release(ctx, name)
}

func (t *sqliteTransaction) Release(ctx context.Context, name string) error {
	if err := validateSavepoint(name); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions are expressed with savepoints
	return nil, fmt.Errorf("nested transactions not supported, use savepoints")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// Transaction methods delegate to the main storage with the transaction.

func (t *sqliteTransaction) SaveCase(ctx context.Context, c *model.Case) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCase(c); err != nil {
		return err
	}
	return t.storage.saveCaseTx(ctx, t.tx, c)
}

func (t *sqliteTransaction) GetCase(ctx context.Context, caseID string) (*model.Case, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	return t.storage.getCaseTx(ctx, t.tx, caseID)
}

func (t *sqliteTransaction) ListCases(ctx context.Context) ([]model.Case, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listCasesTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetCaseSummary(ctx context.Context, caseID string) (*service.CaseSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	return t.storage.getCaseSummaryTx(ctx, t.tx, caseID)
}

func (t *sqliteTransaction) CreateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return t.storage.createDocumentTx(ctx, t.tx, doc)
}

func (t *sqliteTransaction) GetDocument(ctx context.Context, caseID string, documentID int64) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getDocumentTx(ctx, t.tx, caseID, documentID)
}

func (t *sqliteTransaction) ListDocuments(ctx context.Context, caseID string, statuses ...model.DocumentStatus) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listDocumentsTx(ctx, t.tx, caseID, statuses)
}

func (t *sqliteTransaction) ListPendingDocuments(ctx context.Context) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listDocumentsTx(ctx, t.tx, "", []model.DocumentStatus{model.DocumentPending})
}

func (t *sqliteTransaction) UpdateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return t.storage.updateDocumentTx(ctx, t.tx, doc)
}

func (t *sqliteTransaction) UpdateDocumentOCRProgress(ctx context.Context, documentID int64, progress int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updateDocumentOCRProgressTx(ctx, t.tx, documentID, progress)
}

func (t *sqliteTransaction) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.insertTransactionTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) GetTransaction(ctx context.Context, caseID string, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionTx(ctx, t.tx, caseID, id)
}

func (t *sqliteTransaction) ListTransactions(ctx context.Context, caseID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return t.storage.listTransactionsTx(ctx, t.tx, caseID, filter)
}

func (t *sqliteTransaction) MarkDuplicate(ctx context.Context, caseID string, transactionID, canonicalID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markDuplicateTx(ctx, t.tx, caseID, transactionID, canonicalID)
}

func (t *sqliteTransaction) UpdateTransactionTags(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	return t.storage.updateTransactionTagsTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) ListCounterparties(ctx context.Context, caseID string) ([]model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listCounterpartiesTx(ctx, t.tx, caseID)
}

func (t *sqliteTransaction) GetCounterparty(ctx context.Context, caseID string, id int64) (*model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCounterpartyTx(ctx, t.tx, caseID, id)
}

func (t *sqliteTransaction) GetCounterpartyByAccount(ctx context.Context, caseID, account string) (*model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(account, "account"); err != nil {
		return nil, err
	}
	return t.storage.getCounterpartyByAccountTx(ctx, t.tx, caseID, account)
}

func (t *sqliteTransaction) CreateCounterparty(ctx context.Context, cp *model.Counterparty) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCounterparty(cp); err != nil {
		return err
	}
	return t.storage.createCounterpartyTx(ctx, t.tx, cp)
}

func (t *sqliteTransaction) UpdateCounterparty(ctx context.Context, cp *model.Counterparty) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCounterparty(cp); err != nil {
		return err
	}
	return t.storage.updateCounterpartyTx(ctx, t.tx, cp)
}

func (t *sqliteTransaction) SaveDedupDecision(ctx context.Context, decision *model.DedupDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if decision == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	return t.storage.saveDedupDecisionTx(ctx, t.tx, decision)
}

func (t *sqliteTransaction) ListDedupDecisions(ctx context.Context, caseID string) ([]model.DedupDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listDedupDecisionsTx(ctx, t.tx, caseID)
}

func (t *sqliteTransaction) DeleteRuleEvaluations(ctx context.Context, caseID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return err
	}
	return t.storage.deleteRuleEvaluationsTx(ctx, t.tx, caseID)
}

func (t *sqliteTransaction) SaveRuleEvaluations(ctx context.Context, evals []model.RuleEvaluation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveRuleEvaluationsTx(ctx, t.tx, evals)
}

func (t *sqliteTransaction) ListRuleEvaluations(ctx context.Context, caseID string) ([]model.RuleEvaluation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listRuleEvaluationsTx(ctx, t.tx, caseID)
}

func (t *sqliteTransaction) AppendAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEvent(event); err != nil {
		return err
	}
	return t.storage.appendAuditEventTx(ctx, t.tx, event)
}

func (t *sqliteTransaction) ListAuditEvents(ctx context.Context, caseID string) ([]model.AuditEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listAuditEventsTx(ctx, t.tx, caseID)
}
