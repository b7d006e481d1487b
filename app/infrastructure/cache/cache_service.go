package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss means the store answered and the key does not exist.
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrCacheUnavailable means the store could not be asked at all.
	ErrCacheUnavailable = errors.New("cache: store unavailable")
)

// CacheService defines the store operations the analytics cache is built from.
// Every method reports ErrCacheUnavailable distinctly from ErrCacheMiss so
// callers can tell cache-down from cache-cold.
type CacheService interface {
	// Get retrieves a string value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a string value in cache with an expiration time
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// SetNX stores value only when key is absent
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)

	// MGet fetches many keys in one round trip; absent keys are left out of the result
	MGet(ctx context.Context, keys ...string) (map[string]string, error)

	// Delete removes keys asynchronously (UNLINK); missing keys are ignored
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes all keys matching a pattern and returns how many were removed
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// SMembers lists a set
	SMembers(ctx context.Context, key string) ([]string, error)

	// SCard counts a set
	SCard(ctx context.Context, key string) (int64, error)

	// Scan walks keys matching pattern in batches without blocking the server
	Scan(ctx context.Context, pattern string, fn func(keys []string) error) error

	// Pipelined sends the queued commands in one round trip
	Pipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error

	// TxPipelined wraps the queued commands in MULTI/EXEC
	TxPipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error

	// Close closes the cache connection
	Close() error

	// HealthCheck verifies cache connectivity
	HealthCheck(ctx context.Context) error
}
