package datasource

import (
	"context"
	"errors"

	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/domain/query"
)

var ErrNotFound = errors.New("datasource: not found")

// Kind decides how a data source is cached.
type Kind string

const (
	// KindMeasure sources are long tables grouped by measure, practice,
	// provider and frequency.
	KindMeasure Kind = "measure"
	// KindTable sources are cached wholesale as one entry.
	KindTable Kind = "table"
)

type ColumnRole string

const (
	ColumnRoleNone       ColumnRole = ""
	ColumnRoleDate       ColumnRole = "date"
	ColumnRoleTimePeriod ColumnRole = "time_period"
	ColumnRoleMeasure    ColumnRole = "measure"
	ColumnRolePractice   ColumnRole = "practice"
	ColumnRoleProvider   ColumnRole = "provider"
	ColumnRoleFrequency  ColumnRole = "frequency"
	ColumnRoleValue      ColumnRole = "value"
)

type Column struct {
	Name string
	Role ColumnRole
}

type DataSource struct {
	ID         int
	Name       string
	SchemaName string
	TableName  string
	Kind       Kind
	Active     bool
	// DateEndExclusive makes the upper bound of date range filters exclusive.
	DateEndExclusive bool
	Columns          []Column
}

func (d *DataSource) IsTable() bool {
	return d.Kind == KindTable
}

// ColumnFor returns the first column carrying role.
func (d *DataSource) ColumnFor(role ColumnRole) (string, bool) {
	for _, c := range d.Columns {
		if c.Role == role {
			return c.Name, true
		}
	}
	return "", false
}

// DateColumn resolves the column date range filters compare against. A
// dedicated date column wins over a time period column.
func (d *DataSource) DateColumn() (string, bool) {
	if name, ok := d.ColumnFor(ColumnRoleDate); ok {
		return name, true
	}
	return d.ColumnFor(ColumnRoleTimePeriod)
}

type DataSourceFilter struct {
	Active *bool
	Kind   *Kind
}

// Repository reads data source configuration.
type Repository interface {
	FindByID(ctx context.Context, id int) (*DataSource, error)
	FindByFilter(ctx context.Context, filter DataSourceFilter, pagination *query.Pagination) ([]*DataSource, error)
	Count(ctx context.Context, filter DataSourceFilter) (int64, error)
}

// Selection narrows a fallback read from the source of truth. Zero values
// leave a dimension unconstrained.
type Selection struct {
	Measure      string
	Frequency    string
	PracticeUIDs []int
	ProviderUIDs []int
}

// RowFetcher reads rows from the analytics source of truth.
type RowFetcher interface {
	// FetchAll scans the whole data source; limit <= 0 means no limit.
	FetchAll(ctx context.Context, ds *DataSource, limit int) ([]measure.Row, error)
	// Fetch reads only the rows matching sel.
	Fetch(ctx context.Context, ds *DataSource, sel Selection) ([]measure.Row, error)
}
