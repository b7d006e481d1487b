package dbschema

import (
	"menlo.ai/analytics-gateway/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(DatabaseMigration{})
}

type DatabaseMigration struct {
	BaseModel
	Version int64 `gorm:"not null;uniqueIndex"`
}
