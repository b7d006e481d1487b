package datasourcerepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/query"
	"menlo.ai/analytics-gateway/app/infrastructure/database/dbschema"
	"menlo.ai/analytics-gateway/app/infrastructure/database/dbtest"
	"menlo.ai/analytics-gateway/app/infrastructure/database/repository/transaction"
)

func seed(t *testing.T) domain.Repository {
	t.Helper()
	db := dbtest.NewSQLite(t, &dbschema.DataSource{}, &dbschema.DataSourceColumn{})
	sources := []*domain.DataSource{
		{
			Name: "Revenue", SchemaName: "analytics", TableName: "revenue", Kind: domain.KindMeasure, Active: true,
			Columns: []domain.Column{
				{Name: "measure_name", Role: domain.ColumnRoleMeasure},
				{Name: "service_date", Role: domain.ColumnRoleDate},
			},
		},
		{Name: "Practices", SchemaName: "analytics", TableName: "practices", Kind: domain.KindTable, Active: true},
		{Name: "Retired", SchemaName: "analytics", TableName: "old", Kind: domain.KindMeasure, Active: false},
	}
	for _, s := range sources {
		require.NoError(t, db.Create(dbschema.NewSchemaDataSource(s)).Error)
	}
	return NewDataSourceGormRepository(transaction.NewDatabase(db))
}

func TestFindByID(t *testing.T) {
	repo := seed(t)

	ds, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Revenue", ds.Name)
	assert.Equal(t, "revenue", ds.TableName)
	assert.Equal(t, domain.KindMeasure, ds.Kind)
	require.Len(t, ds.Columns, 2)
	assert.Equal(t, "measure_name", ds.Columns[0].Name)
	column, ok := ds.DateColumn()
	require.True(t, ok)
	assert.Equal(t, "service_date", column)

	_, err = repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindByFilter(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()
	active := true

	found, err := repo.FindByFilter(ctx, domain.DataSourceFilter{Active: &active}, nil)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, 1, found[0].ID)
	assert.Equal(t, 2, found[1].ID)

	table := domain.KindTable
	found, err = repo.FindByFilter(ctx, domain.DataSourceFilter{Kind: &table}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].IsTable())

	count, err := repo.Count(ctx, domain.DataSourceFilter{Active: &active})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestFindByFilter_Pagination(t *testing.T) {
	repo := seed(t)
	limit := 1
	after := uint(1)

	found, err := repo.FindByFilter(context.Background(), domain.DataSourceFilter{}, &query.Pagination{Limit: &limit, After: &after, Order: "asc"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].ID)

	found, err = repo.FindByFilter(context.Background(), domain.DataSourceFilter{}, &query.Pagination{Limit: &limit, Order: "desc"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 3, found[0].ID)
}
