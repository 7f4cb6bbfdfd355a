package memory

import (
	"context"

	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/audit"
)

// AuditRecorder implements audit.Recorder.
type AuditRecorder struct {
	s *Store
}

var (
	_ audit.Recorder = (*AuditRecorder)(nil)
	_ audit.History  = (*AuditRecorder)(nil)
)

func (r *AuditRecorder) Record(ctx context.Context, e audit.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.audit = append(r.s.audit, e)
	onRollback(ctx, func() {
		for i := len(r.s.audit) - 1; i >= 0; i-- {
			if r.s.audit[i].ID == e.ID {
				r.s.audit = append(r.s.audit[:i], r.s.audit[i+1:]...)
				return
			}
		}
	})
	return nil
}

// Entries returns recorded entries for entityID, oldest first.
func (r *AuditRecorder) Entries(entityID id.ID) []audit.Entry {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]audit.Entry, 0)
	for _, e := range r.s.audit {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

func (r *AuditRecorder) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]audit.Entry, 0)
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
