package store

import (
	"encoding/json"
	"math"
	"strings"
)

// Record is one document of a collection. Every persisted record carries a
// numeric "id" assigned by the store and a unique, non-empty "key".
type Record map[string]any

// ID returns the record's numeric identity, 0 when unset
func (r Record) ID() int64 {
	id, _ := AsInt(r["id"])
	return id
}

// Key returns the record's key, "" when unset
func (r Record) Key() string {
	key, _ := r["key"].(string)
	return key
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Lookup returns the value at a dotted path ("series.name"). A key equal
// to the whole path wins over nested lookup. Missing segments yield nil.
func (r Record) Lookup(path string) any {
	if v, ok := r[path]; ok {
		return v
	}
	var cur any = r
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case Record:
			cur = m[part]
		case map[string]any:
			cur = m[part]
		default:
			return nil
		}
	}
	return cur
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, item := range t {
			out[i] = item.Clone()
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Normalize converts a decoded or caller-supplied value into the store's
// canonical representation: integral numbers become int64, other numbers
// float64, lists []any and nested documents map[string]any.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return Normalize(f)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float32:
		return Normalize(float64(t))
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case Record:
		return map[string]any(normalizeRecord(t))
	case map[string]any:
		return map[string]any(normalizeRecord(Record(t)))
	default:
		return v
	}
}

func normalizeRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = Normalize(v)
	}
	return out
}

// AsInt converts numeric values (and numeric strings) to int64.
func AsInt(v any) (int64, bool) {
	switch t := Normalize(v).(type) {
	case int64:
		return t, true
	case string:
		n, err := json.Number(strings.TrimSpace(t)).Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// AsList returns v as a list; nil yields an empty list and scalars a
// single-element list.
func AsList(v any) []any {
	switch t := Normalize(v).(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}
