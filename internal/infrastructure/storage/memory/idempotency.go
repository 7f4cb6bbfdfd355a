package memory

import (
	"context"
	"sync"
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/idempotency"
)

type idemRecord struct {
	operatorID  string
	operation   string
	requestHash string
	done        bool
	replay      idempotency.Replay
	expiresAt   time.Time
}

// IdempotencyStore implements idempotency.Store in process. Keys are not
// part of Store transactions.
type IdempotencyStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]*idemRecord
	now  func() time.Time
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:  ttl,
		keys: make(map[string]*idemRecord),
		now:  time.Now,
	}
}

func (s *IdempotencyStore) AcquireKey(_ context.Context, key, operatorID, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.keys[key]
	if !ok || now.After(rec.expiresAt) {
		s.keys[key] = &idemRecord{
			operatorID:  operatorID,
			operation:   operation,
			requestHash: requestHash,
			expiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.operatorID != operatorID || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", rec.operation).
			WithDetail("request_operation", operation)
	}
	if !rec.done {
		return nil, apperror.NewIdempotencyConflict(key)
	}

	replay := rec.replay
	replay.Body = append([]byte(nil), rec.replay.Body...)
	return &replay, nil
}

func (s *IdempotencyStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.finish(key, statusCode, contentType, body)
	return nil
}

func (s *IdempotencyStore) FailKey(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.finish(key, statusCode, contentType, body)
	return nil
}

func (s *IdempotencyStore) finish(key string, statusCode int, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[key]
	if !ok {
		return
	}
	rec.done = true
	rec.replay = idempotency.Replay{
		StatusCode:  idempotency.NormalizeStatus(statusCode),
		ContentType: idempotency.NormalizeContentType(contentType),
		Body:        append([]byte(nil), body...),
	}
}

// CleanupExpired drops expired keys.
func (s *IdempotencyStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, rec := range s.keys {
		if now.After(rec.expiresAt) {
			delete(s.keys, key)
			removed++
		}
	}
	return removed, nil
}
