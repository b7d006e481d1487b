// Package analyticsdb reads analytics rows from the source-of-truth
// database. Column names come from data source configuration, so every
// identifier is validated before it reaches SQL.
package analyticsdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/measure"
)

var ErrInvalidIdentifier = errors.New("analyticsdb: invalid identifier")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// roleFields maps grouping roles to the row field names the cache groups by.
var roleFields = map[datasource.ColumnRole]string{
	datasource.ColumnRoleMeasure:   measure.FieldMeasure,
	datasource.ColumnRolePractice:  measure.FieldPracticeUID,
	datasource.ColumnRoleProvider:  measure.FieldProviderUID,
	datasource.ColumnRoleFrequency: measure.FieldFrequency,
}

type RowFetcher struct {
	db *gorm.DB
}

var _ datasource.RowFetcher = (*RowFetcher)(nil)

func NewRowFetcher(conn *Connection) *RowFetcher {
	return &RowFetcher{db: conn.DB}
}

func (f *RowFetcher) FetchAll(ctx context.Context, ds *datasource.DataSource, limit int) ([]measure.Row, error) {
	sql, err := f.base(ctx, ds)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		sql = sql.Limit(limit)
	}
	return scan(sql)
}

func (f *RowFetcher) Fetch(ctx context.Context, ds *datasource.DataSource, sel datasource.Selection) ([]measure.Row, error) {
	sql, err := f.base(ctx, ds)
	if err != nil {
		return nil, err
	}
	if ds.IsTable() {
		if len(sel.PracticeUIDs) > 0 {
			column, err := f.sourceColumn(ds, datasource.ColumnRolePractice)
			if err != nil {
				return nil, err
			}
			sql = sql.Where(column+" IN ?", sel.PracticeUIDs)
		}
		return scan(sql)
	}

	conditions := []struct {
		role  datasource.ColumnRole
		apply bool
		value any
		op    string
	}{
		{datasource.ColumnRoleMeasure, sel.Measure != "", sel.Measure, " = ?"},
		{datasource.ColumnRoleFrequency, sel.Frequency != "", sel.Frequency, " = ?"},
		{datasource.ColumnRolePractice, len(sel.PracticeUIDs) > 0, sel.PracticeUIDs, " IN ?"},
		{datasource.ColumnRoleProvider, len(sel.ProviderUIDs) > 0, sel.ProviderUIDs, " IN ?"},
	}
	for _, c := range conditions {
		if !c.apply {
			continue
		}
		column, err := f.sourceColumn(ds, c.role)
		if err != nil {
			return nil, err
		}
		sql = sql.Where(column+c.op, c.value)
	}
	return scan(sql)
}

// base selects every configured column, aliasing grouping roles to the
// names the cache uses. Without configured columns the table is read as is.
func (f *RowFetcher) base(ctx context.Context, ds *datasource.DataSource) (*gorm.DB, error) {
	table := ds.TableName
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q of data source %d", ErrInvalidIdentifier, table, ds.ID)
	}
	if ds.SchemaName != "" {
		if !identifierPattern.MatchString(ds.SchemaName) {
			return nil, fmt.Errorf("%w: schema %q of data source %d", ErrInvalidIdentifier, ds.SchemaName, ds.ID)
		}
		table = ds.SchemaName + "." + table
	}
	sql := f.db.WithContext(ctx).Table(table)
	if len(ds.Columns) == 0 {
		return sql, nil
	}

	selects := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		if !identifierPattern.MatchString(c.Name) {
			return nil, fmt.Errorf("%w: column %q of data source %d", ErrInvalidIdentifier, c.Name, ds.ID)
		}
		expr := f.quote(c.Name)
		if alias, ok := roleFields[c.Role]; ok && alias != c.Name {
			expr += " AS " + f.quote(alias)
		}
		selects = append(selects, expr)
	}
	return sql.Select(selects), nil
}

// sourceColumn resolves the quoted source column for role, falling back to
// the conventional field name when the role is not configured.
func (f *RowFetcher) sourceColumn(ds *datasource.DataSource, role datasource.ColumnRole) (string, error) {
	name, ok := ds.ColumnFor(role)
	if !ok {
		name = roleFields[role]
	}
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("%w: column %q of data source %d", ErrInvalidIdentifier, name, ds.ID)
	}
	return f.quote(name), nil
}

func (f *RowFetcher) quote(name string) string {
	return f.db.Statement.Quote(name)
}

func scan(sql *gorm.DB) ([]measure.Row, error) {
	var records []map[string]any
	if err := sql.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("analyticsdb: query: %w", err)
	}
	rows := make([]measure.Row, len(records))
	for i, r := range records {
		rows[i] = measure.Row(r)
	}
	return rows, nil
}
