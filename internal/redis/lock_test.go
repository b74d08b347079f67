package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisSlotLocker(rdb, time.Second)
}

func TestWithSlotLockReleasesAfterRun(t *testing.T) {
	mr, locker := newTestLocker(t)
	slotID := uuid.New()

	ran := false
	err := locker.WithSlotLock(context.Background(), slotID, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(slotLockKey(slotID)))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(slotLockKey(slotID)))
}

func TestWithSlotLockContended(t *testing.T) {
	_, locker := newTestLocker(t)
	slotID := uuid.New()

	err := locker.WithSlotLock(context.Background(), slotID, func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, slotID, func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockPropagatesError(t *testing.T) {
	mr, locker := newTestLocker(t)
	slotID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), slotID, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(slotLockKey(slotID)))
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	mr, locker := newTestLocker(t)
	slotID := uuid.New()
	key := slotLockKey(slotID)

	err := locker.WithSlotLock(context.Background(), slotID, func(context.Context) error {
		// lock expired and someone else took it
		require.NoError(t, mr.Set(key, "other-token"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-token", got)
}
