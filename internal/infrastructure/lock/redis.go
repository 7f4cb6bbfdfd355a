// Package lock implements core/lock.Locker with Redis (shared between
// instances) and in-process (single instance, memory mode).
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	corelock "clinicrx/internal/core/lock"
)

const keyPrefix = "clinicrx:lock:"

// RedisLocker obtains locks through redislock.
type RedisLocker struct {
	client *redislock.Client
}

var _ corelock.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client)}
}

// Obtain tries once; a held key yields corelock.ErrNotObtained.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (corelock.Lock, error) {
	lk, err := l.client.Obtain(ctx, keyPrefix+key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, corelock.ErrNotObtained
		}
		return nil, err
	}
	return &redisLock{lk: lk}, nil
}

type redisLock struct {
	lk *redislock.Lock
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lk.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// expired before release
		return nil
	}
	return err
}
