package measure

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names shared by every measure-based data source.
const (
	FieldMeasure     = "measure"
	FieldPracticeUID = "practice_uid"
	FieldProviderUID = "provider_uid"
	FieldFrequency   = "frequency"
)

// Row is one analytics record as returned by the source of truth.
type Row map[string]any

// Int returns the named field as an int. Floats are accepted only when they
// carry no fractional part, which is how JSON round trips integers.
func (r Row) Int(field string) (int, bool) {
	return ToInt(r[field])
}

// String returns the named field as a non-empty string.
func (r Row) String(field string) (string, bool) {
	switch v := r[field].(type) {
	case string:
		return v, v != ""
	case []byte:
		return string(v), len(v) > 0
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	default:
		return "", false
	}
}

// IsNull reports whether the field is absent or explicitly null.
func (r Row) IsNull(field string) bool {
	v, ok := r[field]
	return !ok || v == nil
}

func ToInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToTime converts date-like row values. Strings are tried against the
// layouts the analytics database and JSON serialization produce.
func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
