package lock

import (
	"context"
	"sync"
	"time"

	"clinicrx/internal/core/id"
	corelock "clinicrx/internal/core/lock"
)

// LocalLocker is an in-process Locker with the same expiry semantics as RedisLocker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

type localEntry struct {
	token     id.ID
	expiresAt time.Time
}

var _ corelock.Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (corelock.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, corelock.ErrNotObtained
	}
	token := id.New()
	l.held[key] = localEntry{token: token, expiresAt: now.Add(ttl)}
	return &localLock{owner: l, key: key, token: token}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	token id.ID
}

// Release frees the key unless it already expired and was taken by someone else.
func (l *localLock) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if e, ok := l.owner.held[l.key]; ok && e.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}
