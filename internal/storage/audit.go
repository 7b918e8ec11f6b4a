package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/google/uuid"
)

// AppendAuditEvent writes an audit event. Events are never updated or deleted.
func (s *SQLiteStorage) AppendAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEvent(event); err != nil {
		return err
	}
	return s.appendAuditEventTx(ctx, s.db, event)
}

func (s *SQLiteStorage) appendAuditEventTx(ctx context.Context, q queryable, event *model.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Actor == "" {
		event.Actor = model.ActorSystem
	}

	var payload sql.NullString
	if len(event.Payload) > 0 {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (id, case_id, actor, action, entity_type, entity_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, nullString(event.CaseID), event.Actor, event.Action,
		nullString(event.EntityType), nullString(event.EntityID), payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit event %s: %w", event.Action, err)
	}
	return nil
}

// ListAuditEvents returns a case's audit trail in chronological order.
func (s *SQLiteStorage) ListAuditEvents(ctx context.Context, caseID string) ([]model.AuditEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listAuditEventsTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) listAuditEventsTx(ctx context.Context, q queryable, caseID string) ([]model.AuditEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, case_id, actor, action, entity_type, entity_id, payload, created_at
		FROM audit_events
		WHERE case_id = ?
		ORDER BY created_at, rowid
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.AuditEvent
	for rows.Next() {
		var (
			e                                     model.AuditEvent
			eventCase, entityType, entityID, body sql.NullString
			createdAt                             sql.NullTime
		)
		if err := rows.Scan(&e.ID, &eventCase, &e.Actor, &e.Action, &entityType, &entityID,
			&body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.CaseID = eventCase.String
		e.EntityType = entityType.String
		e.EntityID = entityID.String
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}
		if body.Valid && body.String != "" {
			if err := json.Unmarshal([]byte(body.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func validateAuditEvent(event *model.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("%w: audit event", ErrNilParameter)
	}
	return validateString(event.Action, "action")
}
