package ledger

import (
	"reflect"
	"sort"

	"github.com/sweldo/sweldo-sync/internal/schema"
)

// Change is one field-level delta.
type Change struct {
	Day      string `json:"day"`
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Diff compares the payloads of record keys present in both maps and
// returns one Change per field whose value differs. Keys that only exist in
// next are new records, not changes. Results are ordered by key, then field.
func Diff(prior, next map[string]schema.Payload) []Change {
	keys := make([]string, 0, len(next))
	for k := range next {
		if _, ok := prior[k]; ok {
			keys = append(keys, k)
		}
	}
	schema.SortKeys(keys)

	var changes []Change
	for _, k := range keys {
		before, after := prior[k], next[k]

		fields := make([]string, 0, len(before)+len(after))
		seen := make(map[string]bool, len(before)+len(after))
		for f := range before {
			seen[f] = true
			fields = append(fields, f)
		}
		for f := range after {
			if !seen[f] {
				fields = append(fields, f)
			}
		}
		sort.Strings(fields)

		for _, f := range fields {
			oldValue, newValue := before[f], after[f]
			if equal(oldValue, newValue) {
				continue
			}
			changes = append(changes, Change{Day: k, Field: f, OldValue: oldValue, NewValue: newValue})
		}
	}
	return changes
}

// equal compares JSON-like values, treating numbers of different Go types
// as equal when their values match at any depth.
func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if ma, ok := asMap(a); ok {
		mb, ok := asMap(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !equal(va, vb) {
				return false
			}
		}
		return true
	}
	if sa, ok := a.([]any); ok {
		sb, ok := b.([]any)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case schema.Payload:
		return t, true
	default:
		return nil, false
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
