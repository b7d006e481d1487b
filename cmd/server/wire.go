//go:build wireinject

package main

import (
	"github.com/google/wire"
	"menlo.ai/analytics-gateway/app/domain"
	"menlo.ai/analytics-gateway/app/infrastructure"
	"menlo.ai/analytics-gateway/app/infrastructure/database"
	"menlo.ai/analytics-gateway/app/infrastructure/database/migration"
	"menlo.ai/analytics-gateway/app/infrastructure/database/repository"
	"menlo.ai/analytics-gateway/app/interfaces/http"
	"menlo.ai/analytics-gateway/app/interfaces/http/routes"
)

func CreateApplication() (*Application, func(), error) {
	wire.Build(
		database.NewDB,
		migration.NewDBMigrator,
		infrastructure.InfrastructureProvider,
		repository.RepositoryProvider,
		domain.ServiceProvider,
		routes.RouteProvider,
		http.NewHttpServer,
		wire.Struct(new(DataInitializer), "*"),
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
