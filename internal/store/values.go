package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Lookup reads the value at a dot-separated path.
func Lookup(doc Document, path string) (any, bool) {
	var current any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Map returns the nested object at path, or nil.
func (d Document) Map(path string) map[string]any {
	v, ok := Lookup(d, path)
	if !ok {
		return nil
	}
	m, _ := asMap(v)
	return m
}

func (d Document) String(path string) string {
	v, ok := Lookup(d, path)
	if !ok {
		return ""
	}
	s, _ := AsString(v)
	return s
}

func (d Document) Int64(path string) int64 {
	v, ok := Lookup(d, path)
	if !ok {
		return 0
	}
	n, _ := AsInt64(v)
	return n
}

func (d Document) Float64(path string) (float64, bool) {
	v, ok := Lookup(d, path)
	if !ok {
		return 0, false
	}
	return AsFloat64(v)
}

func (d Document) Time(path string) (time.Time, bool) {
	v, ok := Lookup(d, path)
	if !ok {
		return time.Time{}, false
	}
	return AsTime(v)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

func AsString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case int, int32, int64, float64:
		f, _ := AsFloat64(s)
		return strconv.FormatFloat(f, 'f', -1, 64), true
	default:
		return "", false
	}
}

func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func AsFloat64(v any) (float64, bool) {
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
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsTime accepts time values and RFC3339 or YYYY-MM-DD strings.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.DateOnly, t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// compare orders two scalar values of a compatible kind.
// A time on either side parses the other through AsTime, so RFC3339 strings
// order against time values.
func compare(a, b any) (int, bool) {
	if isTime(a) || isTime(b) {
		at, ok := AsTime(a)
		if !ok {
			return 0, false
		}
		bt, ok := AsTime(b)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, ok := AsFloat64(a)
	if !ok {
		return 0, false
	}
	bf, ok := AsFloat64(b)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func isTime(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time:
		return true
	}
	return false
}

func matches(doc Document, f Filter) bool {
	v, ok := Lookup(doc, f.Field)
	if !ok {
		return false
	}
	c, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return c == 0
	case OpGreater:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	case OpLess:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	default:
		return false
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(copyMap(t))
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}
