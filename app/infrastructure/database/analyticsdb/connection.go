package analyticsdb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

// Connection is the read-only handle on the analytics database. It is a
// distinct type so dependency injection never confuses it with the
// configuration database.
type Connection struct {
	DB *gorm.DB
}

func NewConnection() (*Connection, error) {
	db, err := gorm.Open(postgres.Open(environment_variables.EnvironmentVariables.ANALYTICS_DB_DSN), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		logger.GetLogger().
			WithField("error_code", "1f0e6f52-96a4-4b0c-9b64-3a0ce0d0b7a1").
			Errorf("unable to connect to analytics database: %v", err)
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return &Connection{DB: db}, nil
}

func NewConnectionFromDB(db *gorm.DB) *Connection {
	return &Connection{DB: db}
}

func (c *Connection) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("analyticsdb: ping: %w", err)
	}
	return nil
}
