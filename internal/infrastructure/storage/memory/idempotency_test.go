package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicrx/internal/core/apperror"
)

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)

	replay, err := s.AcquireKey(ctx, "k1", "desk-1", "POST /invoices", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = s.AcquireKey(ctx, "k1", "desk-1", "POST /invoices", "h1")
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotency))

	require.NoError(t, s.CompleteKey(ctx, "k1", 201, "", []byte(`{"ok":true}`)))

	replay, err = s.AcquireKey(ctx, "k1", "desk-1", "POST /invoices", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
}

func TestIdempotencyStore_MismatchAndExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Minute)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.AcquireKey(ctx, "k", "desk-1", "POST /invoices", "h1")
	require.NoError(t, err)

	_, err = s.AcquireKey(ctx, "k", "desk-1", "POST /invoices", "other")
	assert.Error(t, err)

	now = now.Add(2 * time.Minute)
	replay, err := s.AcquireKey(ctx, "k", "desk-1", "POST /invoices", "other")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.AcquireKey(ctx, "old", "desk-1", "POST /invoices", "h1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.AcquireKey(ctx, "fresh", "desk-1", "POST /invoices", "h2")
	require.NoError(t, err)

	removed, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = s.AcquireKey(ctx, "fresh", "desk-1", "POST /invoices", "h2")
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotency))
}
