// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/clawback/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	DocumentID    int64
	CanonicalOnly bool
	Limit         int
	Offset        int
}

// CaseSummary aggregates the state of one case for display.
type CaseSummary struct {
	DocumentsByStatus map[model.DocumentStatus]int
	FlaggedByRule     map[string]int
	Transactions      int
	Duplicates        int
	Counterparties    int
}

// Storage defines the contract for our persistence layer.
// All records except cases are scoped by case id.
type Storage interface {
	// Case operations
	SaveCase(ctx context.Context, c *model.Case) error
	GetCase(ctx context.Context, caseID string) (*model.Case, error)
	ListCases(ctx context.Context) ([]model.Case, error)
	GetCaseSummary(ctx context.Context, caseID string) (*CaseSummary, error)

	// Document operations
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, caseID string, documentID int64) (*model.Document, error)
	ListDocuments(ctx context.Context, caseID string, statuses ...model.DocumentStatus) ([]model.Document, error)
	ListPendingDocuments(ctx context.Context) ([]model.Document, error)
	UpdateDocument(ctx context.Context, doc *model.Document) error
	UpdateDocumentOCRProgress(ctx context.Context, documentID int64, progress int) error

	// Transaction operations
	InsertTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, caseID string, id int64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, caseID string, filter TransactionFilter) ([]model.Transaction, error)
	MarkDuplicate(ctx context.Context, caseID string, transactionID, canonicalID int64) error
	UpdateTransactionTags(ctx context.Context, txn *model.Transaction) error

	// Counterparty operations
	ListCounterparties(ctx context.Context, caseID string) ([]model.Counterparty, error)
	GetCounterparty(ctx context.Context, caseID string, id int64) (*model.Counterparty, error)
	GetCounterpartyByAccount(ctx context.Context, caseID, account string) (*model.Counterparty, error)
	CreateCounterparty(ctx context.Context, cp *model.Counterparty) error
	UpdateCounterparty(ctx context.Context, cp *model.Counterparty) error

	// Deduplication decisions
	SaveDedupDecision(ctx context.Context, decision *model.DedupDecision) error
	ListDedupDecisions(ctx context.Context, caseID string) ([]model.DedupDecision, error)

	// Rule evaluations
	DeleteRuleEvaluations(ctx context.Context, caseID string) error
	SaveRuleEvaluations(ctx context.Context, evals []model.RuleEvaluation) error
	ListRuleEvaluations(ctx context.Context, caseID string) ([]model.RuleEvaluation, error)

	// Audit log
	AppendAuditEvent(ctx context.Context, event *model.AuditEvent) error
	ListAuditEvents(ctx context.Context, caseID string) ([]model.AuditEvent, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error

	// Savepoints isolate a unit of work inside the transaction.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error

	// Include all Storage methods for use within transaction
	Storage
}
