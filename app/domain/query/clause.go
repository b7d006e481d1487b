package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/utils/functional"
)

var ErrInvalidClause = errors.New("invalid filter clause")

type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpIn    Operator = "in"
	OpNotIn Operator = "not_in"
	OpLike  Operator = "like"
)

// Clause is one user supplied condition on a named field.
type Clause struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

func (c Clause) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: field is required", ErrInvalidClause)
	}
	switch c.Operator {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return nil
	case OpIn, OpNotIn:
		if _, ok := listOf(c.Value); !ok {
			return fmt.Errorf("%w: %s on %s needs a list value", ErrInvalidClause, c.Operator, c.Field)
		}
		return nil
	case OpLike:
		if _, ok := c.Value.(string); !ok {
			return fmt.Errorf("%w: like on %s needs a string value", ErrInvalidClause, c.Field)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown operator %q", ErrInvalidClause, c.Operator)
}

func (c Clause) Match(row measure.Row) bool {
	actual := row[c.Field]
	switch c.Operator {
	case OpEq:
		return equal(actual, c.Value)
	case OpNeq:
		return !equal(actual, c.Value)
	case OpGt:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp <= 0
	case OpIn:
		list, _ := listOf(c.Value)
		return containsValue(list, actual)
	case OpNotIn:
		list, _ := listOf(c.Value)
		return !containsValue(list, actual)
	case OpLike:
		pattern, _ := c.Value.(string)
		return like(actual, pattern)
	}
	return false
}

// ApplyClauses keeps rows matching every clause.
func ApplyClauses(rows []measure.Row, clauses []Clause) ([]measure.Row, error) {
	if len(clauses) == 0 {
		return rows, nil
	}
	for _, c := range clauses {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return functional.Filter(rows, func(row measure.Row) bool {
		for _, c := range clauses {
			if !c.Match(row) {
				return false
			}
		}
		return true
	}), nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromUint64(rv.Uint()), true
	}
	return decimal.Decimal{}, false
}

func isNumber(v any) bool {
	if _, ok := v.(string); ok {
		return false
	}
	_, ok := toDecimal(v)
	return ok
}

func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func equal(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if isNumber(actual) || isNumber(expected) {
		a, okA := toDecimal(actual)
		b, okB := toDecimal(expected)
		if okA && okB {
			return a.Equal(b)
		}
	}
	if b, ok := actual.(bool); ok {
		return toText(expected) == fmt.Sprint(b)
	}
	return toText(actual) == toText(expected)
}

// compare orders numbers as decimals, dates chronologically and anything
// else as text. Nulls never compare.
func compare(actual, expected any) (int, bool) {
	if actual == nil || expected == nil {
		return 0, false
	}
	if isNumber(actual) || isNumber(expected) {
		a, okA := toDecimal(actual)
		b, okB := toDecimal(expected)
		if okA && okB {
			return a.Cmp(b), true
		}
		return 0, false
	}
	if a, ok := measure.ToTime(actual); ok {
		if b, ok := measure.ToTime(expected); ok {
			return a.Compare(b), true
		}
	}
	return strings.Compare(toText(actual), toText(expected)), true
}

func listOf(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func containsValue(list []any, actual any) bool {
	for _, candidate := range list {
		if equal(actual, candidate) {
			return true
		}
	}
	return false
}

// like is a case-insensitive substring match; leading and trailing '%'
// are accepted and ignored.
func like(actual any, pattern string) bool {
	if actual == nil {
		return false
	}
	needle := strings.ToLower(strings.Trim(pattern, "%"))
	return strings.Contains(strings.ToLower(toText(actual)), needle)
}
