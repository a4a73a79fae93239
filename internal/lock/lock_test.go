package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hallpass-app/hallpass/internal/lock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	l := lock.NewLocal()
	ctx := context.Background()

	unlock, err := l.TryLock(ctx)
	require.NoError(t, err)

	_, err = l.TryLock(ctx)
	assert.ErrorIs(t, err, lock.ErrRunInProgress)

	unlock()
	// A second release must not panic on an unlocked mutex.
	unlock()

	again, err := l.TryLock(ctx)
	require.NoError(t, err)
	again()
}

func TestLocal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lock.NewLocal().TryLock(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func newRedisLock(t *testing.T, ttl time.Duration) (*lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := lock.NewRedis(client, "", ttl)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("contention", func(t *testing.T) {
		l, mr := newRedisLock(t, time.Minute)

		unlock, err := l.TryLock(ctx)
		require.NoError(t, err)
		assert.True(t, mr.Exists(lock.DefaultKey))
		assert.Equal(t, time.Minute, mr.TTL(lock.DefaultKey))

		_, err = l.TryLock(ctx)
		assert.ErrorIs(t, err, lock.ErrRunInProgress)

		unlock()
		assert.False(t, mr.Exists(lock.DefaultKey))

		again, err := l.TryLock(ctx)
		require.NoError(t, err)
		again()
	})

	t.Run("separate processes share the key", func(t *testing.T) {
		l, mr := newRedisLock(t, time.Minute)
		other := lock.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), lock.DefaultKey, time.Minute)
		defer other.Close()

		unlock, err := l.TryLock(ctx)
		require.NoError(t, err)
		defer unlock()

		_, err = other.TryLock(ctx)
		assert.ErrorIs(t, err, lock.ErrRunInProgress)
	})

	t.Run("expired holder does not release the next holder", func(t *testing.T) {
		l, mr := newRedisLock(t, time.Second)

		stale, err := l.TryLock(ctx)
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)
		require.False(t, mr.Exists(lock.DefaultKey))

		current, err := l.TryLock(ctx)
		require.NoError(t, err)
		held, err := mr.Get(lock.DefaultKey)
		require.NoError(t, err)

		stale()
		got, err := mr.Get(lock.DefaultKey)
		require.NoError(t, err)
		assert.Equal(t, held, got)

		_, err = l.TryLock(ctx)
		assert.ErrorIs(t, err, lock.ErrRunInProgress)

		current()
		assert.False(t, mr.Exists(lock.DefaultKey))
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		l := lock.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "", time.Minute)
		defer l.Close()
		mr.Close()

		_, err = l.TryLock(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, lock.ErrRunInProgress)
	})
}
