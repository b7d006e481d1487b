package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachetest"
)

func TestRedisLocker_SecondAcquireIsContention(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	locker := NewRedisLocker(client)

	lock, err := locker.TryAcquire(ctx, "lock:cache:warm:{ds:1}", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "lock:cache:warm:{ds:1}", lock.Key())
	assert.NotEmpty(t, lock.Token())

	stored, err := mr.Get("lock:cache:warm:{ds:1}")
	require.NoError(t, err)
	assert.Equal(t, lock.Token(), stored)

	_, err = locker.TryAcquire(ctx, "lock:cache:warm:{ds:1}", time.Minute)
	assert.ErrorIs(t, err, ErrLockContention)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("lock:cache:warm:{ds:1}"))

	again, err := locker.TryAcquire(ctx, "lock:cache:warm:{ds:1}", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_ReleaseAfterTakeoverKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	locker := NewRedisLocker(client)

	first, err := locker.TryAcquire(ctx, "lock:cache:scheduler", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	second, err := locker.TryAcquire(ctx, "lock:cache:scheduler", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, first.Release(ctx), ErrLockLost)

	stored, err := mr.Get("lock:cache:scheduler")
	require.NoError(t, err)
	assert.Equal(t, second.Token(), stored)
}

func TestRedisLocker_UnavailableStore(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	locker := NewRedisLocker(client)
	mr.Close()

	_, err := locker.TryAcquire(ctx, "lock:x", time.Minute)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.NotErrorIs(t, err, ErrLockContention)
}

func TestNoOpLocker(t *testing.T) {
	_, err := (&NoOpLocker{}).TryAcquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
}
