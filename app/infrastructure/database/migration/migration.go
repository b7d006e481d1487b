package migration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"menlo.ai/analytics-gateway/app/infrastructure/database/dbschema"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

// Step moves the configuration schema to Version. Steps run in version
// order inside one transaction.
type Step struct {
	Version int64
	Name    string
	Up      func(tx *gorm.DB) error
}

func Steps() []Step {
	return []Step{
		{
			Version: 1,
			Name:    "create data source tables",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&dbschema.DataSource{}, &dbschema.DataSourceColumn{})
			},
		},
		{
			Version: 2,
			Name:    "index data sources by kind",
			Up: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_data_source_kind_active ON data_source (kind, active)").Error
			},
		},
	}
}

type DBMigrator struct {
	db    *gorm.DB
	steps []Step
}

func NewDBMigrator(db *gorm.DB) *DBMigrator {
	steps := Steps()
	slices.SortFunc(steps, func(a, b Step) int {
		return int(a.Version - b.Version)
	})
	return &DBMigrator{db: db, steps: steps}
}

func (d *DBMigrator) initialize(ctx context.Context) error {
	db := d.db.WithContext(ctx)
	if err := db.AutoMigrate(&dbschema.DatabaseMigration{}); err != nil {
		return fmt.Errorf("failed to create 'database_migration' table: %w", err)
	}
	var record dbschema.DatabaseMigration
	err := db.Order("id").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Create(&dbschema.DatabaseMigration{Version: 0}).Error; err != nil {
			return fmt.Errorf("failed to insert initial migration record: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query migration records: %w", err)
	}
	return nil
}

// LockVersion reads the current version and holds its row until tx ends so
// two instances starting together apply each step once.
func (d *DBMigrator) LockVersion(ctx context.Context, tx *gorm.DB) (dbschema.DatabaseMigration, error) {
	var m dbschema.DatabaseMigration
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id").
		First(&m).Error
	return m, err
}

// Migrate applies every step newer than the recorded version and returns
// the version the schema ends at.
func (d *DBMigrator) Migrate(ctx context.Context) (int64, error) {
	if err := d.initialize(ctx); err != nil {
		return 0, err
	}
	var version int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := d.LockVersion(ctx, tx)
		if err != nil {
			return err
		}
		version = current.Version
		for _, step := range d.steps {
			if step.Version <= version {
				continue
			}
			if err := step.Up(tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", step.Version, step.Name, err)
			}
			logger.GetLogger().Infof("migration: applied %d (%s)", step.Version, step.Name)
			version = step.Version
		}
		if version == current.Version {
			return nil
		}
		return tx.Model(&current).Update("version", version).Error
	})
	return version, err
}
