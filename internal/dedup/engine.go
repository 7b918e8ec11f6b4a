// Package dedup marks transactions that appear in more than one source document.
package dedup

import (
	"context"
	"fmt"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
)

const reason = "Exact fingerprint match (date+amount+currency+ibans+counterparty+purpose+e2e)"

// Store is the storage surface the engine needs.
type Store interface {
	ListTransactions(ctx context.Context, caseID string, filter service.TransactionFilter) ([]model.Transaction, error)
	MarkDuplicate(ctx context.Context, caseID string, transactionID, canonicalID int64) error
	SaveDedupDecision(ctx context.Context, decision *model.DedupDecision) error
	audit.Appender
}

// Stats summarizes one dedup run.
type Stats struct {
	Checked    int `json:"checked"`
	Duplicates int `json:"duplicates"`
	Canonical  int `json:"canonical"`
}

// Engine clusters transactions by fingerprint.
type Engine struct{}

// NewEngine creates a dedup engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Run scans the case's canonical transactions in (booking date, id) order.
// The first transaction per fingerprint stays canonical; later ones are marked
// as duplicates of it. Rows are never deleted, and a second run finds nothing new.
func (e *Engine) Run(ctx context.Context, store Store, caseID string) (Stats, error) {
	txns, err := store.ListTransactions(ctx, caseID, service.TransactionFilter{CanonicalOnly: true})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load transactions: %w", err)
	}

	stats := Stats{Checked: len(txns)}
	seen := make(map[string]int64, len(txns))

	for i := range txns {
		txn := &txns[i]
		fp := txn.Fingerprint
		if fp == "" {
			fp = txn.GenerateFingerprint()
		}

		canonicalID, dup := seen[fp]
		if !dup {
			seen[fp] = txn.ID
			continue
		}

		if err := e.markDuplicate(ctx, store, caseID, txn, canonicalID); err != nil {
			return stats, err
		}
		stats.Duplicates++
	}

	stats.Canonical = stats.Checked - stats.Duplicates
	common.LogInfo("dedup completed", common.Fields{
		"case_id":    caseID,
		"checked":    stats.Checked,
		"duplicates": stats.Duplicates,
	})
	return stats, nil
}

func (e *Engine) markDuplicate(ctx context.Context, store Store, caseID string, txn *model.Transaction, canonicalID int64) error {
	if err := store.MarkDuplicate(ctx, caseID, txn.ID, canonicalID); err != nil {
		return fmt.Errorf("failed to mark transaction %d: %w", txn.ID, err)
	}

	decision := &model.DedupDecision{
		CaseID:        caseID,
		TransactionID: txn.ID,
		DuplicateOf:   canonicalID,
		Decision:      model.DedupDecisionDuplicate,
		Method:        model.DedupMethodFingerprint,
		Confidence:    1.0,
		Reason:        reason,
		Key:           txn.FingerprintKey(),
	}
	if err := store.SaveDedupDecision(ctx, decision); err != nil {
		return fmt.Errorf("failed to save dedup decision: %w", err)
	}

	return audit.Record(ctx, store, caseID, audit.ActionDedupMarkDuplicate, audit.EntityTransaction, txn.ID,
		map[string]any{"duplicate_of": canonicalID, "method": model.DedupMethodFingerprint})
}
