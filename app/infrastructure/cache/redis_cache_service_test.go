package cache

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachetest"
)

func TestRedisCacheService_GetDistinguishesMissFromUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)

	_, err := svc.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NotErrorIs(t, err, ErrCacheUnavailable)

	mr.Close()

	_, err = svc.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheService_BreakerOpensAfterRepeatedOutages(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)
	mr.Close()

	for i := 0; i < breakerTripFailures; i++ {
		_, err := svc.Get(ctx, "k")
		require.ErrorIs(t, err, ErrCacheUnavailable)
	}

	_, err := svc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestRedisCacheService_MissesDoNotTripBreaker(t *testing.T) {
	ctx := context.Background()
	_, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)

	for i := 0; i < breakerTripFailures*2; i++ {
		_, err := svc.Get(ctx, "absent")
		require.ErrorIs(t, err, ErrCacheMiss)
	}
	require.NoError(t, svc.Set(ctx, "k", "v", time.Minute))
	v, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestRedisCacheService_SetNXAndExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)

	ok, err := svc.SetNX(ctx, "marker", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SetNX(ctx, "marker", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	exists, err := svc.Exists(ctx, "marker")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCacheService_MGetSkipsMissingKeys(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("c", "3"))

	got, err := svc.MGet(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "c": "3"}, got)

	got, err = svc.MGet(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCacheService_SetsAndPipelines(t *testing.T) {
	ctx := context.Background()
	_, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)

	err := svc.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, "s", "x", "y")
		pipe.Expire(ctx, "s", time.Minute)
		return nil
	})
	require.NoError(t, err)

	n, err := svc.SCard(ctx, "s")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	members, err := svc.SMembers(ctx, "s")
	require.NoError(t, err)
	sort.Strings(members)
	assert.Equal(t, []string{"x", "y"}, members)
}

func TestRedisCacheService_DeletePattern(t *testing.T) {
	ctx := context.Background()
	mr, client := cachetest.NewRedis(t)
	svc := NewRedisCacheService(client)
	for i := 0; i < 25; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("cache:{ds:1}:k%d", i), "v"))
	}
	require.NoError(t, mr.Set("cache:{ds:2}:k", "v"))

	deleted, err := svc.DeletePattern(ctx, "cache:{ds:1}:*")
	require.NoError(t, err)
	assert.Equal(t, 25, deleted)
	assert.True(t, mr.Exists("cache:{ds:2}:k"))

	require.NoError(t, svc.Delete(ctx, "missing-1", "missing-2"))
}

func TestNoOpCacheService_ReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	var svc CacheService = &NoOpCacheService{}

	_, err := svc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.ErrorIs(t, svc.Set(ctx, "k", "v", time.Second), ErrCacheUnavailable)
	assert.ErrorIs(t, svc.HealthCheck(ctx), ErrCacheUnavailable)
	assert.NoError(t, svc.Close())
}
