package cache

import "time"

const (
	CacheTypeRedis    = "redis"
	CacheTypeDisabled = "disabled"

	DefaultRedisURL = "redis://localhost:6379"

	// scanCount is the COUNT hint for SCAN; large enough to keep round trips
	// low, small enough not to stall Redis.
	scanCount = 1000

	breakerName         = "redis"
	breakerMaxRequests  = 1
	breakerInterval     = 30 * time.Second
	breakerOpenTimeout  = 10 * time.Second
	breakerTripFailures = 5
)
