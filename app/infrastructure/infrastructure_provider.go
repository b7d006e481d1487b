package infrastructure

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
	"menlo.ai/analytics-gateway/app/infrastructure/database/analyticsdb"
	"menlo.ai/analytics-gateway/app/utils/httpclients/permissions"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

var InfrastructureProvider = wire.NewSet(
	NewRedisClient,
	cache.NewCacheService,
	cache.NewLocker,
	NewKeyCodec,
	NewIndexStore,
	analyticsdb.NewConnection,
	analyticsdb.NewRowFetcher,
	wire.Bind(new(datasource.RowFetcher), new(*analyticsdb.RowFetcher)),
	permissions.NewClient,
	wire.Bind(new(access.ScopeResolver), new(*permissions.Client)),
)

// NewRedisClient builds the one store client of the process.
func NewRedisClient() (redis.UniversalClient, func()) {
	client := cache.NewRedisClient()
	return client, func() {
		if err := client.Close(); err != nil {
			logger.GetLogger().Warnf("infrastructure: close redis client: %v", err)
		}
	}
}

// NewKeyCodec namespaces keys by ENVIRONMENT so deployments sharing a Redis
// never read each other's entries.
func NewKeyCodec() *cachekey.Codec {
	return cachekey.NewCodec(environment_variables.EnvironmentVariables.ENVIRONMENT)
}

func NewIndexStore(cacheService cache.CacheService, keys *cachekey.Codec) *indexstore.IndexStore {
	return indexstore.NewIndexStore(cacheService, keys, indexstore.ConfigFromEnvironment())
}
