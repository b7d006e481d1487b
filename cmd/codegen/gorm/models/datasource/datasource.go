package datasource

import (
	"gorm.io/gen"
	"menlo.ai/analytics-gateway/app/infrastructure/database/dbschema"
)

// Raw SQL
type Querier interface {
	// SELECT * FROM @@table WHERE active = true AND deleted_at IS NULL ORDER BY id
	FindActive() ([]*gen.T, error)
	// SELECT * FROM @@table WHERE kind = @kind AND deleted_at IS NULL ORDER BY id
	FindByKind(kind string) ([]*gen.T, error)
}

type ColumnQuerier interface {
	// SELECT * FROM @@table WHERE data_source_id = @dataSourceID AND deleted_at IS NULL ORDER BY position, id
	FindByDataSource(dataSourceID uint) ([]*gen.T, error)
}

func RegisterDataSource(g *gen.Generator) {
	g.ApplyBasic(dbschema.DataSource{}, dbschema.DataSourceColumn{})
	g.ApplyInterface(func(Querier) {}, dbschema.DataSource{})
	g.ApplyInterface(func(ColumnQuerier) {}, dbschema.DataSourceColumn{})
}
