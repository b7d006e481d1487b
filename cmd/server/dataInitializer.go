package main

import (
	"context"

	"menlo.ai/analytics-gateway/app/infrastructure/database/migration"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

type DataInitializer struct {
	migrator *migration.DBMigrator
}

func (d *DataInitializer) Install(ctx context.Context) error {
	version, err := d.migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().Infof("data initializer: configuration schema at version %d", version)
	return nil
}
