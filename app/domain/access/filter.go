package access

import (
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/utils/functional"
)

type FilterResult struct {
	Rows []measure.Row
	// FailClosed is set when a narrowed scope had nothing accessible and
	// every row was withheld.
	FailClosed bool
	Dropped    int
}

// Filter keeps only the rows u may see. Input rows are never modified.
func Filter(rows []measure.Row, u UserContext) (FilterResult, error) {
	if err := ValidateScope(u); err != nil {
		return FilterResult{Rows: []measure.Row{}, Dropped: len(rows)}, err
	}
	if u.Scope == ScopeAll {
		return FilterResult{Rows: rows}, nil
	}
	if len(u.AccessiblePracticeUIDs) == 0 {
		return FilterResult{Rows: []measure.Row{}, FailClosed: true, Dropped: len(rows)}, nil
	}
	// Provider-level scopes need an explicit provider list.
	if u.Scope.NeedsProviders() && len(u.AccessibleProviderUIDs) == 0 {
		return FilterResult{Rows: []measure.Row{}, FailClosed: true, Dropped: len(rows)}, nil
	}

	practices := functional.ToSet(u.AccessiblePracticeUIDs)
	var providers map[int]struct{}
	if u.AccessibleProviderUIDs != nil {
		providers = functional.ToSet(u.AccessibleProviderUIDs)
	}

	kept := functional.Filter(rows, func(r measure.Row) bool {
		practice, ok := r.Int(measure.FieldPracticeUID)
		if !ok {
			return false
		}
		if _, ok := practices[practice]; !ok {
			return false
		}
		if providers == nil {
			return true
		}
		if r.IsNull(measure.FieldProviderUID) {
			return u.Scope.SeesCrossProvider()
		}
		provider, ok := r.Int(measure.FieldProviderUID)
		if !ok {
			return false
		}
		_, ok = providers[provider]
		return ok
	})
	return FilterResult{Rows: kept, Dropped: len(rows) - len(kept)}, nil
}
