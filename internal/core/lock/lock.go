// Package lock defines short-lived named locks used to serialise work that
// spans several store writes (e.g. one GRN run per purchase order).
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotObtained is returned when the lock is held by someone else.
var ErrNotObtained = errors.New("lock: not obtained")

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtains locks by key. Implementations: infrastructure/lock.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
