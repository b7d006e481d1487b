package analyticsdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/infrastructure/database/dbtest"
)

func newFetcher(t *testing.T) *RowFetcher {
	t.Helper()
	db := dbtest.NewSQLite(t)
	require.NoError(t, db.Exec(`CREATE TABLE revenue (
		measure_name TEXT,
		practice INTEGER,
		provider INTEGER,
		freq TEXT,
		service_date TEXT,
		amount INTEGER
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO revenue VALUES
		('Revenue', 114, 501, 'Monthly', '2024-01-10', 1000),
		('Revenue', 114, NULL, 'Monthly', '2024-01-10', 500),
		('Revenue', 200, 501, 'Monthly', '2024-01-10', 3000),
		('Visits', 114, 501, 'Weekly', '2024-01-10', 7)`).Error)
	return NewRowFetcher(NewConnectionFromDB(db))
}

func revenueSource() *datasource.DataSource {
	return &datasource.DataSource{
		ID:         1,
		SchemaName: "main",
		TableName:  "revenue",
		Kind:       datasource.KindMeasure,
		Columns: []datasource.Column{
			{Name: "measure_name", Role: datasource.ColumnRoleMeasure},
			{Name: "practice", Role: datasource.ColumnRolePractice},
			{Name: "provider", Role: datasource.ColumnRoleProvider},
			{Name: "freq", Role: datasource.ColumnRoleFrequency},
			{Name: "service_date", Role: datasource.ColumnRoleDate},
			{Name: "amount", Role: datasource.ColumnRoleValue},
		},
	}
}

func TestFetchAll_AliasesGroupingColumns(t *testing.T) {
	f := newFetcher(t)

	rows, err := f.FetchAll(context.Background(), revenueSource(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	first := rows[0]
	m, ok := first.String(measure.FieldMeasure)
	require.True(t, ok)
	assert.Equal(t, "Revenue", m)
	practice, ok := first.Int(measure.FieldPracticeUID)
	require.True(t, ok)
	assert.Equal(t, 114, practice)
	assert.Contains(t, first, "service_date")
	assert.Contains(t, first, "amount")
	assert.NotContains(t, first, "measure_name")
	assert.True(t, rows[1].IsNull(measure.FieldProviderUID))
}

func TestFetchAll_Limit(t *testing.T) {
	f := newFetcher(t)

	rows, err := f.FetchAll(context.Background(), revenueSource(), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetch_Selection(t *testing.T) {
	f := newFetcher(t)
	ctx := context.Background()

	rows, err := f.Fetch(ctx, revenueSource(), datasource.Selection{
		Measure:      "Revenue",
		Frequency:    "Monthly",
		PracticeUIDs: []int{114},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = f.Fetch(ctx, revenueSource(), datasource.Selection{
		Measure:      "Revenue",
		Frequency:    "Monthly",
		ProviderUIDs: []int{501},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetch_RejectsUnsafeIdentifiers(t *testing.T) {
	f := newFetcher(t)
	ds := revenueSource()
	ds.TableName = "revenue; DROP TABLE revenue"

	_, err := f.FetchAll(context.Background(), ds, 0)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	ds = revenueSource()
	ds.Columns[0].Name = "measure name"
	_, err = f.Fetch(context.Background(), ds, datasource.Selection{Measure: "Revenue"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
