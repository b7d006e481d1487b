package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockContention means another owner holds the lock.
	ErrLockContention = errors.New("cache: lock held by another owner")
	// ErrLockLost means the lock expired or was taken over before release.
	ErrLockLost = errors.New("cache: lock no longer owned")
)

// Lock is a held, time-bounded distributed lock.
type Lock interface {
	Key() string
	// Token identifies the owner; only the holder of this token can release.
	Token() string
	Release(ctx context.Context) error
}

// Locker acquires locks without waiting: a held lock is reported as
// ErrLockContention immediately.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker implements Locker with single-node redsync mutexes
// (SET NX PX to acquire, compare-and-delete script to release).
type RedisLocker struct {
	client redis.UniversalClient
	rs     *redsync.Redsync
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
	}
}

func newOwnerToken() (string, error) {
	return uuid.NewString(), nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
		redsync.WithGenValueFunc(newOwnerToken),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		if l.reachable(ctx, err) {
			return nil, ErrLockContention
		}
		return nil, fmt.Errorf("%w: acquire %s: %v", ErrCacheUnavailable, key, err)
	}
	return &redisLock{mutex: mutex, client: l.client}, nil
}

// reachable decides whether a failed lock call was a refusal or an outage.
func (l *RedisLocker) reachable(ctx context.Context, err error) bool {
	if errors.Is(err, redsync.ErrFailed) || errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return true
	}
	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	return l.client.Ping(pingCtx).Err() == nil
}

type redisLock struct {
	mutex  *redsync.Mutex
	client redis.UniversalClient
}

func (l *redisLock) Key() string {
	return l.mutex.Name()
}

func (l *redisLock) Token() string {
	return l.mutex.Value()
}

// Release deletes the lock only if it still carries this owner's token.
func (l *redisLock) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err == nil && ok {
		return nil
	}
	if err == nil || errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return ErrLockLost
	}
	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if l.client.Ping(pingCtx).Err() == nil {
		return ErrLockLost
	}
	return fmt.Errorf("%w: release %s: %v", ErrCacheUnavailable, l.mutex.Name(), err)
}

// NoOpLocker refuses every lock: without a shared store there is no safe way
// to coordinate instances.
type NoOpLocker struct{}

func (n *NoOpLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	return nil, ErrCacheUnavailable
}
