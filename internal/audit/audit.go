// Package audit appends structured events to the case audit log.
package audit

import (
	"context"
	"fmt"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
)

// Actions written by the pipeline and its collaborators.
const (
	ActionDocumentProcessed    = "document.processed"
	ActionDocumentFailed       = "document.process_failed"
	ActionDocumentOCRRequired  = "document.ocr_required"
	ActionDocumentOCRDone      = "document.ocr_done"
	ActionDocumentOCRFailed    = "document.ocr_failed"
	ActionCounterpartyCreated  = "counterparty.created"
	ActionCounterpartyFuzzy    = "counterparty.matched_fuzzy"
	ActionCounterpartyEnriched = "counterparty.enriched"
	ActionDedupMarkDuplicate   = "DEDUP_MARK_DUPLICATE"
	ActionTransactionTagged    = "transaction.user_tags_set"
	ActionTaskStarted          = "task.started"
	ActionTaskCompleted        = "task.completed"
	ActionTaskFailed           = "task.failed"
)

// Entity types.
const (
	EntityDocument     = "document"
	EntityCounterparty = "counterparty"
	EntityTransaction  = "transaction"
	EntityTask         = "task"
)

//go:generate mockgen -destination=mock_audit/mock_audit.go -package=mock_audit . Appender

// Appender is the storage capability needed to write events.
type Appender interface {
	AppendAuditEvent(ctx context.Context, event *model.AuditEvent) error
}

// Record appends one system event. The entity id is rendered with %v.
func Record(ctx context.Context, store Appender, caseID, action, entityType string, entityID any, payload map[string]any) error {
	event := &model.AuditEvent{
		CaseID:     caseID,
		Actor:      model.ActorSystem,
		Action:     action,
		EntityType: entityType,
		EntityID:   fmt.Sprint(entityID),
		Payload:    payload,
	}
	if err := store.AppendAuditEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s: %w", action, err)
	}

	common.LogDebug("audit event recorded", common.Fields{
		"case_id": caseID,
		"action":  action,
		"entity":  entityType,
		"id":      event.EntityID,
	})
	return nil
}
