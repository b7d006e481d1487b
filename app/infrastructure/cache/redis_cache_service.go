package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

// RedisCacheService provides caching functionality using Redis. Calls go
// through a circuit breaker so an unreachable Redis fails fast with
// ErrCacheUnavailable instead of stalling every request on dial timeouts.
type RedisCacheService struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewRedisClient builds the single Redis client handle shared by every
// component of the process.
func NewRedisClient() redis.UniversalClient {
	redisURL := environment_variables.EnvironmentVariables.REDIS_URL
	if redisURL == "" {
		redisURL = DefaultRedisURL
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.GetLogger().Error(fmt.Sprintf("Failed to parse Redis URL: %v", err))
		// Fallback to default configuration
		opts = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	// Override with environment variables if provided
	if environment_variables.EnvironmentVariables.REDIS_PASSWORD != "" {
		opts.Password = environment_variables.EnvironmentVariables.REDIS_PASSWORD
	}
	if environment_variables.EnvironmentVariables.REDIS_DB != "" {
		if db, err := strconv.Atoi(environment_variables.EnvironmentVariables.REDIS_DB); err == nil {
			opts.DB = db
		}
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logger.GetLogger().Info("Successfully connected to Redis")
	}

	return client
}

// NewRedisCacheService wraps an existing client.
func NewRedisCacheService(client redis.UniversalClient) *RedisCacheService {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrCacheUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.GetLogger().WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("redis cache: circuit breaker state changed")
		},
	})
	return &RedisCacheService{
		client:  client,
		breaker: breaker,
	}
}

// classify maps raw client errors onto the miss/unavailable taxonomy. Server
// replies such as WRONGTYPE are passed through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}

func (r *RedisCacheService) do(op func() error) error {
	_, err := r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, classify(op())
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return err
}

// Get retrieves a value from Redis
func (r *RedisCacheService) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := r.do(func() error {
		var err error
		val, err = r.client.Get(ctx, key).Result()
		return err
	})
	return val, err
}

// Set stores a value in Redis with an expiration time
func (r *RedisCacheService) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return r.do(func() error {
		return r.client.Set(ctx, key, value, expiration).Err()
	})
}

func (r *RedisCacheService) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	var ok bool
	err := r.do(func() error {
		var err error
		ok, err = r.client.SetNX(ctx, key, value, expiration).Result()
		return err
	})
	return ok, err
}

func (r *RedisCacheService) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	found := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	err := r.do(func() error {
		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range values {
			if s, ok := v.(string); ok {
				found[keys[i]] = s
			}
		}
		return nil
	})
	return found, err
}

// Delete removes keys from Redis with UNLINK so large sets are reclaimed off the main thread
func (r *RedisCacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.do(func() error {
		return r.client.Unlink(ctx, keys...).Err()
	})
}

// DeletePattern removes all keys matching a pattern
func (r *RedisCacheService) DeletePattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	err := r.Scan(ctx, pattern, func(keys []string) error {
		err := r.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, k := range keys {
				pipe.Unlink(ctx, k)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to unlink keys: %w", err)
		}
		deleted += len(keys)
		return nil
	})
	return deleted, err
}

// Exists checks if a key exists in Redis
func (r *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.do(func() error {
		var err error
		n, err = r.client.Exists(ctx, key).Result()
		return err
	})
	return n > 0, err
}

func (r *RedisCacheService) SMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := r.do(func() error {
		var err error
		members, err = r.client.SMembers(ctx, key).Result()
		return err
	})
	return members, err
}

func (r *RedisCacheService) SCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := r.do(func() error {
		var err error
		n, err = r.client.SCard(ctx, key).Result()
		return err
	})
	return n, err
}

func (r *RedisCacheService) Scan(ctx context.Context, pattern string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		var keys []string
		err := r.do(func() error {
			var err error
			keys, cursor, err = r.client.Scan(ctx, cursor, pattern, scanCount).Result()
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisCacheService) Pipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	return r.do(func() error {
		_, err := r.client.Pipelined(ctx, fn)
		return err
	})
}

func (r *RedisCacheService) TxPipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	return r.do(func() error {
		_, err := r.client.TxPipelined(ctx, fn)
		return err
	})
}

// Close closes the Redis connection
func (r *RedisCacheService) Close() error {
	return r.client.Close()
}

// HealthCheck verifies Redis connectivity
func (r *RedisCacheService) HealthCheck(ctx context.Context) error {
	return r.do(func() error {
		return r.client.Ping(ctx).Err()
	})
}
