package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// NewDB opens the configuration database with an optional read replica.
func NewDB() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(environment_variables.EnvironmentVariables.DB_POSTGRESQL_WRITE_DSN), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		logger.GetLogger().
			WithField("error_code", "5c16fb53-d98c-4fc6-8bb4-9abd3c0b9e88").
			Errorf("unable to connect to database: %v", err)
		return nil, err
	}
	if replica := environment_variables.EnvironmentVariables.DB_POSTGRESQL_READ1_DSN; replica != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(replica)},
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			logger.GetLogger().
				WithField("error_code", "9fab4b2e-1d70-4a4e-928a-5e81c7ee06de").
				Errorf("unable to set up read replica: %v", err)
			return nil, err
		}
	}
	return db, nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}
	return nil
}
