package store

import (
	"fmt"
	"strconv"
	"time"
)

// Record is one row keyed by column name. Values read back from a SQL driver
// may arrive as []byte, int64, float64, bool, string or time.Time; the
// accessors below normalise them.
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the record's column names.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	return cols
}

// String returns the column as a string, "" when NULL or absent.
func (r Record) String(col string) string {
	switch v := deref(r[col]).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// StringPtr returns nil for NULL.
func (r Record) StringPtr(col string) *string {
	if deref(r[col]) == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Float returns the column as a float64; numeric columns come back as []byte
// from lib/pq.
func (r Record) Float(col string) float64 {
	switch v := deref(r[col]).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Int returns the column as an int.
func (r Record) Int(col string) int {
	switch v := deref(r[col]).(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case []byte:
		n, _ := strconv.Atoi(string(v))
		return n
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// IntPtr returns nil for NULL.
func (r Record) IntPtr(col string) *int {
	if deref(r[col]) == nil {
		return nil
	}
	n := r.Int(col)
	return &n
}

// Bool returns the column as a bool.
func (r Record) Bool(col string) bool {
	switch v := deref(r[col]).(type) {
	case bool:
		return v
	case []byte:
		b, _ := strconv.ParseBool(string(v))
		return b
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case int64:
		return v != 0
	}
	return false
}

// Time returns the column as a time.Time, zero when NULL.
func (r Record) Time(col string) time.Time {
	switch v := deref(r[col]).(type) {
	case time.Time:
		return v
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	case []byte:
		t, _ := time.Parse(time.RFC3339Nano, string(v))
		return t
	}
	return time.Time{}
}

// TimePtr returns nil for NULL.
func (r Record) TimePtr(col string) *time.Time {
	if deref(r[col]) == nil {
		return nil
	}
	t := r.Time(col)
	return &t
}

// IsNull reports whether the column is NULL or absent.
func (r Record) IsNull(col string) bool {
	return deref(r[col]) == nil
}

// deref unwraps the typed nil pointers domain records use for NULL columns.
func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

// Normalize replaces typed nil pointers with untyped nil and dereferences the
// rest, so drivers and comparisons see plain values.
func Normalize(v any) any { return deref(v) }
