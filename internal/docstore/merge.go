package docstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweldo/sweldo-sync/internal/schema"
)

// MergeInto applies a merge write of src onto dst in place.
func MergeInto(dst, src map[string]any) {
	for k, v := range src {
		if IsDeleteField(v) {
			delete(dst, k)
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				MergeInto(existing, sub)
				continue
			}
			dst[k] = stripSentinels(sub)
			continue
		}
		dst[k] = cloneValue(v)
	}
}

// stripSentinels deep-copies m dropping DeleteField values.
func stripSentinels(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsDeleteField(v) {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = stripSentinels(sub)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Timestamp:
		if t == nil {
			return nil
		}
		return *t
	case time.Time:
		return TimestampOf(t)
	case map[string]any:
		return stripSentinels(t)
	default:
		return schema.CloneValue(v)
	}
}

// apply returns the document that results from writing data over existing.
func apply(existing, data map[string]any, merge bool) map[string]any {
	if !merge || existing == nil {
		return stripSentinels(data)
	}
	out := stripSentinels(existing)
	MergeInto(out, data)
	return out
}

// encodeDocument renders a document in the persistent wire form.
func encodeDocument(data map[string]any) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return b, nil
}

// decodeDocument parses the wire form and revives timestamps.
func decodeDocument(b []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return reviveMap(data), nil
}

func reviveMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = revive(v)
	}
	return m
}

func revive(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if ts, ok := timestampFromWire(t); ok {
			return ts
		}
		return reviveMap(t)
	case []any:
		for i, e := range t {
			t[i] = revive(e)
		}
		return t
	default:
		return v
	}
}
