package cache

import (
	"strings"

	"github.com/redis/go-redis/v9"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

func cacheDisabled() bool {
	cacheType := strings.ToLower(environment_variables.EnvironmentVariables.CACHE_TYPE)
	return cacheType == CacheTypeDisabled || cacheType == "none" || cacheType == "noop"
}

// NewCacheService creates a cache service based on configuration
func NewCacheService(client redis.UniversalClient) CacheService {
	if cacheDisabled() {
		return &NoOpCacheService{}
	}
	return NewRedisCacheService(client)
}

// NewLocker creates the distributed locker matching the configured cache type
func NewLocker(client redis.UniversalClient) Locker {
	if cacheDisabled() {
		return &NoOpLocker{}
	}
	return NewRedisLocker(client)
}
