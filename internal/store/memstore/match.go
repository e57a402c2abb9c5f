package memstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// matches must be called with s.mu held.
func (s *Store) matches(row store.Record, conds []store.Cond) (bool, error) {
	for _, c := range conds {
		v := row[c.Column]
		switch c.Op {
		case store.OpEq:
			if v == nil || compare(v, store.Normalize(c.Value)) != 0 {
				return false, nil
			}
		case store.OpNotEq:
			if v == nil || compare(v, store.Normalize(c.Value)) == 0 {
				return false, nil
			}
		case store.OpGt:
			if v == nil || compare(v, store.Normalize(c.Value)) <= 0 {
				return false, nil
			}
		case store.OpGte:
			if v == nil || compare(v, store.Normalize(c.Value)) < 0 {
				return false, nil
			}
		case store.OpIsNull:
			if v != nil {
				return false, nil
			}
		case store.OpNotNull:
			if v == nil {
				return false, nil
			}
		case store.OpIn:
			values, _ := c.Value.([]any)
			found := false
			for _, want := range values {
				if v != nil && compare(v, store.Normalize(want)) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case store.OpNotExists:
			ref, ok := s.tables[c.Ref.Table]
			if !ok {
				return false, fmt.Errorf("%w: %s", store.ErrUnknownTable, c.Ref.Table)
			}
			for _, other := range ref.rows {
				if compare(other[c.Ref.Column], v) == 0 {
					return false, nil
				}
			}
		default:
			return false, fmt.Errorf("memstore: unsupported operator %q", c.Op)
		}
	}
	return true, nil
}

// compare orders two column values: numbers numerically, times
// chronologically, everything else by string form. nil sorts first.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
