package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/domain/measure"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func TestDateRange_Bounds(t *testing.T) {
	rows := []measure.Row{
		{"service_date": day(1), "id": 1},
		{"service_date": "2024-01-15", "id": 2},
		{"service_date": "2024-01-31T00:00:00Z", "id": 3},
		{"service_date": nil, "id": 4},
		{"id": 5},
	}
	ids := func(rows []measure.Row) []int {
		out := []int{}
		for _, r := range rows {
			v, _ := r.Int("id")
			out = append(out, v)
		}
		return out
	}

	inclusive := DateRange{Start: ptr(day(1)), End: ptr(day(31))}
	assert.Equal(t, []int{1, 2, 3}, ids(ApplyDateRange(rows, "service_date", inclusive)))

	exclusive := DateRange{Start: ptr(day(1)), End: ptr(day(31)), EndExclusive: true}
	assert.Equal(t, []int{1, 2}, ids(ApplyDateRange(rows, "service_date", exclusive)))

	open := DateRange{Start: ptr(day(2))}
	assert.Equal(t, []int{2, 3}, ids(ApplyDateRange(rows, "service_date", open)))

	assert.Len(t, ApplyDateRange(rows, "service_date", DateRange{}), 5)
}

func TestDateRange_InclusiveEndCoversWholeDay(t *testing.T) {
	end := day(31)
	inclusive := DateRange{End: &end}
	assert.True(t, inclusive.Contains(time.Date(2024, 1, 31, 18, 45, 0, 0, time.UTC)))
	assert.True(t, inclusive.Contains(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, inclusive.Contains(day(31).AddDate(0, 0, 1)))

	exclusive := DateRange{End: &end, EndExclusive: true}
	assert.False(t, exclusive.Contains(time.Date(2024, 1, 31, 18, 45, 0, 0, time.UTC)))

	instant := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	exact := DateRange{End: &instant}
	assert.True(t, exact.Contains(instant))
	assert.False(t, exact.Contains(instant.Add(time.Second)))
}

func TestDateRange_Validate(t *testing.T) {
	assert.Error(t, DateRange{Start: ptr(day(5)), End: ptr(day(1))}.Validate())
	assert.NoError(t, DateRange{Start: ptr(day(1)), End: ptr(day(1))}.Validate())
}

func TestClause_Operators(t *testing.T) {
	row := measure.Row{
		"measure":  "Revenue",
		"value":    json.Number("1000.10"),
		"count":    7,
		"provider": nil,
		"period":   "2024-03-01",
	}
	tests := []struct {
		clause Clause
		want   bool
	}{
		{Clause{Field: "measure", Operator: OpEq, Value: "Revenue"}, true},
		{Clause{Field: "measure", Operator: OpNeq, Value: "Charges"}, true},
		{Clause{Field: "value", Operator: OpEq, Value: 1000.1}, true},
		{Clause{Field: "value", Operator: OpGt, Value: "1000.09"}, true},
		{Clause{Field: "value", Operator: OpGte, Value: 1000.1}, true},
		{Clause{Field: "value", Operator: OpLt, Value: 1000}, false},
		{Clause{Field: "count", Operator: OpLte, Value: json.Number("7")}, true},
		{Clause{Field: "count", Operator: OpIn, Value: []any{1.0, 7.0}}, true},
		{Clause{Field: "count", Operator: OpNotIn, Value: []int{1, 2}}, true},
		{Clause{Field: "measure", Operator: OpIn, Value: []string{"Charges"}}, false},
		{Clause{Field: "measure", Operator: OpLike, Value: "%venu%"}, true},
		{Clause{Field: "measure", Operator: OpLike, Value: "REV"}, true},
		{Clause{Field: "provider", Operator: OpEq, Value: nil}, true},
		{Clause{Field: "provider", Operator: OpGt, Value: 1}, false},
		{Clause{Field: "provider", Operator: OpLike, Value: "x"}, false},
		{Clause{Field: "period", Operator: OpGte, Value: "2024-02-15"}, true},
		{Clause{Field: "period", Operator: OpLt, Value: day(1)}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.clause.Operator)+"/"+tt.clause.Field, func(t *testing.T) {
			require.NoError(t, tt.clause.Validate())
			assert.Equal(t, tt.want, tt.clause.Match(row))
		})
	}
}

func TestClause_DecimalAvoidsFloatDrift(t *testing.T) {
	row := measure.Row{"value": 0.3}
	assert.True(t, Clause{Field: "value", Operator: OpEq, Value: "0.3"}.Match(row))
	assert.True(t, Clause{Field: "value", Operator: OpGte, Value: json.Number("0.30")}.Match(row))
}

func TestApplyClauses(t *testing.T) {
	rows := []measure.Row{
		{"measure": "Revenue", "value": 10},
		{"measure": "Revenue", "value": 20},
		{"measure": "Charges", "value": 30},
	}

	got, err := ApplyClauses(rows, []Clause{
		{Field: "measure", Operator: OpEq, Value: "Revenue"},
		{Field: "value", Operator: OpGt, Value: 15},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 20, got[0]["value"])

	got, err = ApplyClauses(rows, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = ApplyClauses(rows, []Clause{{Field: "value", Operator: "between", Value: 1}})
	assert.ErrorIs(t, err, ErrInvalidClause)

	_, err = ApplyClauses(rows, []Clause{{Field: "value", Operator: OpIn, Value: 3}})
	assert.ErrorIs(t, err, ErrInvalidClause)
}
