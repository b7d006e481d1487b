package query

import (
	"fmt"
	"time"

	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/utils/functional"
)

// DateRange bounds rows by a date column. Start is inclusive; End is
// inclusive unless EndExclusive is set. An inclusive End at midnight is a
// calendar day and admits every time of that day. Nil bounds are open.
type DateRange struct {
	Start        *time.Time
	End          *time.Time
	EndExclusive bool
}

func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

func (r DateRange) Validate() error {
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("invalid date range: end %s before start %s", r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil {
		if r.EndExclusive && !t.Before(*r.End) {
			return false
		}
		if !r.EndExclusive && !t.Before(inclusiveLimit(*r.End)) {
			return false
		}
	}
	return true
}

// ApplyDateRange keeps rows whose column falls inside r. Rows whose column
// is missing or unparseable are dropped once any bound is set.
func ApplyDateRange(rows []measure.Row, column string, r DateRange) []measure.Row {
	if r.IsZero() {
		return rows
	}
	return functional.Filter(rows, func(row measure.Row) bool {
		t, ok := measure.ToTime(row[column])
		return ok && r.Contains(t)
	})
}

// inclusiveLimit is the first instant past an inclusive end.
func inclusiveLimit(end time.Time) time.Time {
	if end.Equal(end.Truncate(24 * time.Hour)) {
		return end.AddDate(0, 0, 1)
	}
	return end.Add(time.Nanosecond)
}
