// Package audit defines the audit trail contract for business operations
// whose outcome must stay explainable after the fact.
package audit

import (
	"context"
	"time"

	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/core/id"
)

// Actions recorded in the trail.
const (
	ActionReceive = "receive"
	ActionCreate  = "create"
	ActionAdjust  = "adjust"
)

// Entry is one audit record.
type Entry struct {
	ID         id.ID     `json:"id"`
	EntityType string    `json:"entityType"`
	EntityID   id.ID     `json:"entityId"`
	Action     string    `json:"action"`
	OperatorID string    `json:"operatorId"`
	RequestID  string    `json:"requestId,omitempty"`
	Payload    any       `json:"payload"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewEntry fills identity and attribution from ctx.
func NewEntry(ctx context.Context, entityType string, entityID id.ID, action string, payload any) Entry {
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OperatorID: appctx.GetOperatorID(ctx),
		RequestID:  appctx.GetRequestID(ctx),
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
}

// Recorder persists audit entries. Implementations: storage/postgres.AuditService
// (zstd-compressed JSON) and storage/memory.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// History reads the trail of one entity, newest first.
type History interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
