package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), mr
}

func TestWithSlotLockRunsSection(t *testing.T) {
	locker, _ := newTestLocker(t)

	ran := false
	err := locker.WithSlotLock(context.Background(), "k1", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithSlotLockExcludesHolder(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	err := locker.WithSlotLock(ctx, "k1", func(lockCtx context.Context) error {
		// Re-entry on the same key while held must be refused.
		inner := locker.WithSlotLock(ctx, "k1", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// A different key is independent.
		return locker.WithSlotLock(ctx, "k2", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestWithSlotLockReleasesOnReturn(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	require.NoError(t, locker.WithSlotLock(ctx, "k1", func(context.Context) error { return nil }))
	assert.False(t, mr.Exists("lock:slot:k1"))

	// Held again immediately after release.
	require.NoError(t, locker.WithSlotLock(ctx, "k1", func(context.Context) error { return nil }))
}

func TestWithSlotLockReleasesOnError(t *testing.T) {
	locker, mr := newTestLocker(t)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), "k1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:slot:k1"))
}

func TestWithSlotLockRunsUnlockedWhenRedisDown(t *testing.T) {
	locker, mr := newTestLocker(t)
	mr.Close()

	ran := false
	err := locker.WithSlotLock(context.Background(), "k1", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// The section's error still propagates in degraded mode.
	boom := errors.New("boom")
	err = locker.WithSlotLock(context.Background(), "k1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSlotKey(t *testing.T) {
	providerID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	got := SlotKey(providerID, date, "09:30")
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8:2026-09-07:09:30", got)
}
