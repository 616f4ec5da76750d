// Package transform converts value trees between local form (time.Time and
// date strings) and remote form (docstore.Timestamp).
//
// Both directions are pure, total and deep: maps are walked value by value,
// slices element by element, and anything that is not a date passes through
// unchanged.
package transform

import (
	"time"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

// DateLayouts are the string layouts recognised as dates when sniffing.
// A string must match one of them completely.
var DateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Converter walks value trees. SniffStrings controls whether plain strings
// that parse as dates become timestamps on the way out.
type Converter struct {
	SniffStrings bool
}

var sniffing = Converter{SniffStrings: true}

// ToRemote converts every time.Time and every date-like string in v to a
// docstore.Timestamp.
func ToRemote(v any) any {
	return sniffing.ToRemote(v)
}

// FromRemote converts every docstore.Timestamp in v to a UTC time.Time.
func FromRemote(v any) any {
	return sniffing.FromRemote(v)
}

// ParseDate reports whether s is a date in one of DateLayouts.
// Layouts without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	// Cheap reject before trying every layout.
	if len(s) < len("2006-01-02") || s[4] != '-' || s[7] != '-' {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToRemote converts v to remote form.
func (c Converter) ToRemote(v any) any {
	switch t := v.(type) {
	case time.Time:
		return docstore.TimestampOf(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return docstore.TimestampOf(*t)
	case string:
		if c.SniffStrings {
			if tm, ok := ParseDate(t); ok {
				return docstore.TimestampOf(tm)
			}
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = c.ToRemote(e)
		}
		return out
	case schema.Payload:
		return c.ToRemote(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.ToRemote(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.ToRemote(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.ToRemote(e)
		}
		return out
	default:
		return v
	}
}

// FromRemote converts v to local form.
func (c Converter) FromRemote(v any) any {
	switch t := v.(type) {
	case docstore.Timestamp:
		return t.Time()
	case *docstore.Timestamp:
		if t == nil {
			return nil
		}
		return t.Time()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = c.FromRemote(e)
		}
		return out
	case schema.Payload:
		return c.FromRemote(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.FromRemote(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.FromRemote(e)
		}
		return out
	default:
		return v
	}
}
