package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NoOpCacheService stands in when caching is disabled. Every operation reports
// ErrCacheUnavailable so read paths fall back to the source of truth.
type NoOpCacheService struct{}

var _ CacheService = (*NoOpCacheService)(nil)

func (n *NoOpCacheService) Get(ctx context.Context, key string) (string, error) {
	return "", ErrCacheUnavailable
}

func (n *NoOpCacheService) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return ErrCacheUnavailable
}

func (n *NoOpCacheService) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return false, ErrCacheUnavailable
}

func (n *NoOpCacheService) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return nil, ErrCacheUnavailable
}

func (n *NoOpCacheService) Delete(ctx context.Context, keys ...string) error {
	return ErrCacheUnavailable
}

func (n *NoOpCacheService) DeletePattern(ctx context.Context, pattern string) (int, error) {
	return 0, ErrCacheUnavailable
}

func (n *NoOpCacheService) Exists(ctx context.Context, key string) (bool, error) {
	return false, ErrCacheUnavailable
}

func (n *NoOpCacheService) SMembers(ctx context.Context, key string) ([]string, error) {
	return nil, ErrCacheUnavailable
}

func (n *NoOpCacheService) SCard(ctx context.Context, key string) (int64, error) {
	return 0, ErrCacheUnavailable
}

func (n *NoOpCacheService) Scan(ctx context.Context, pattern string, fn func(keys []string) error) error {
	return ErrCacheUnavailable
}

func (n *NoOpCacheService) Pipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	return ErrCacheUnavailable
}

func (n *NoOpCacheService) TxPipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	return ErrCacheUnavailable
}

// Close is a no-op implementation
func (n *NoOpCacheService) Close() error {
	return nil
}

func (n *NoOpCacheService) HealthCheck(ctx context.Context) error {
	return ErrCacheUnavailable
}
