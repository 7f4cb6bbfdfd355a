package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelock "clinicrx/internal/core/lock"
)

func TestLocalLocker_ExclusiveUntilRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	first, err := l.Obtain(ctx, "grn:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Obtain(ctx, "grn:1", time.Minute)
	assert.ErrorIs(t, err, corelock.ErrNotObtained)

	other, err := l.Obtain(ctx, "grn:2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, first.Release(ctx))
	again, err := l.Obtain(ctx, "grn:1", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestLocalLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Obtain(ctx, "grn:1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.Obtain(ctx, "grn:1", time.Minute)
	require.NoError(t, err)

	// releasing the expired lock must not free the new holder
	require.NoError(t, stale.Release(ctx))
	_, err = l.Obtain(ctx, "grn:1", time.Minute)
	assert.ErrorIs(t, err, corelock.ErrNotObtained)

	require.NoError(t, fresh.Release(ctx))
}
