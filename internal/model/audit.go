package model

import "time"

// Actors recorded on audit events.
const (
	ActorSystem   = "system"
	ActorReviewer = "reviewer"
)

// AuditEvent is an append-only record of something the system did.
type AuditEvent struct {
	CreatedAt  time.Time
	Payload    map[string]any
	ID         string
	CaseID     string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
}
