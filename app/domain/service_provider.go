package domain

import (
	"github.com/google/wire"
	"menlo.ai/analytics-gateway/app/domain/analytics"
	"menlo.ai/analytics-gateway/app/domain/auth"
	"menlo.ai/analytics-gateway/app/domain/cron"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/healthcheck"
	"menlo.ai/analytics-gateway/app/domain/warming"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachestats"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
)

var ServiceProvider = wire.NewSet(
	NewDataSourceService,
	wire.Bind(new(analytics.SourceLoader), new(*datasource.Service)),
	wire.Bind(new(warming.SourceLoader), new(*datasource.Service)),
	wire.Bind(new(cron.ActiveSources), new(*datasource.Service)),
	warming.ConfigFromEnvironment,
	warming.NewOrchestrator,
	cron.ConfigFromEnvironment,
	cron.NewSchedulerService,
	analytics.NewPipeline,
	auth.NewAuthService,
	healthcheck.NewService,
	NewCacheStatsReporter,
)

func NewDataSourceService(repo datasource.Repository) (*datasource.Service, func(), error) {
	service, err := datasource.NewService(repo)
	if err != nil {
		return nil, nil, err
	}
	return service, service.Close, nil
}

// NewCacheStatsReporter classifies staleness with the same threshold the
// orchestrator warms by.
func NewCacheStatsReporter(cacheService cache.CacheService, store *indexstore.IndexStore, orchestrator *warming.Orchestrator) *cachestats.Reporter {
	return cachestats.NewReporter(cacheService, store, orchestrator.Config().StalenessThreshold)
}
