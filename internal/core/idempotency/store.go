// Package idempotency defines the contract behind X-Idempotency-Key handling.
// Implementations: storage/postgres.IdempotencyStore (sys_idempotency) and
// storage/memory.IdempotencyStore.
package idempotency

import "context"

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store tracks idempotency keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the key is fresh, a Replay when the
	// operation already finished, or an apperror when the key is in flight
	// or was used for a different request.
	AcquireKey(ctx context.Context, key, operatorID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
}

// Sweeper is implemented by stores that need expired keys removed periodically.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// NormalizeStatus defaults a missing stored status to 200.
func NormalizeStatus(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

// NormalizeContentType defaults a missing stored content type to JSON.
func NormalizeContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
