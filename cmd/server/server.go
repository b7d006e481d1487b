package main

import (
	"context"

	"github.com/mileusna/crontab"
	"menlo.ai/analytics-gateway/app/domain/cron"
	"menlo.ai/analytics-gateway/app/domain/healthcheck"
	"menlo.ai/analytics-gateway/app/interfaces/http"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

type Application struct {
	HttpServer  *http.HttpServer
	Scheduler   *cron.SchedulerService
	Healthcheck *healthcheck.HealthcheckCrontabService
	Initializer *DataInitializer
}

func (application *Application) Start(ctx context.Context) {
	if err := application.Initializer.Install(ctx); err != nil {
		panic(err)
	}
	ctab := crontab.New()
	if err := application.Healthcheck.Start(ctx, ctab); err != nil {
		panic(err)
	}
	if err := application.Scheduler.Start(ctx, ctab); err != nil {
		panic(err)
	}
	if err := application.HttpServer.Run(); err != nil {
		panic(err)
	}
}

func init() {
	environment_variables.EnvironmentVariables.LoadFromEnv()
}

// @title Analytics Gateway API
// @version 1.0
// @description Indexed analytics cache in front of the analytics database.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	application, cleanup, err := CreateApplication()
	if err != nil {
		panic(err)
	}
	defer cleanup()
	logger.GetLogger().Info("server: starting analytics gateway")
	application.Start(context.Background())
}
