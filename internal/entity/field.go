package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/schema"
	"github.com/sweldo/sweldo-sync/internal/transform"
)

// Kind is the type of a payload field.
type Kind int

const (
	String Kind = iota
	Number
	Money
	Bool
	Date
	DateTime
	Any
	List
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Money:
		return "money"
	case Bool:
		return "bool"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Any:
		return "any"
	case List:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Local date layouts.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339Nano
)

// Field is one entry of a record schema.
type Field struct {
	Name    string
	Kind    Kind
	Default any

	// Of is the element schema of a List field.
	Of []Field
}

// normalize coerces v to the field's local form. Values that cannot be
// coerced are kept as they are.
func (f Field) normalize(v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case Number:
		if n, ok := toFloat(v); ok {
			return n
		}
	case Money:
		if d, ok := toDecimal(v); ok {
			return d.Round(2).InexactFloat64()
		}
	case Bool:
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b
			}
		}
	case Date:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(DateLayout)
		case string:
			if tm, ok := transform.ParseDate(t); ok && len(t) > len(DateLayout) {
				return tm.UTC().Format(DateLayout)
			}
		}
	case DateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(DateTimeLayout)
		case string:
			if tm, ok := transform.ParseDate(t); ok {
				return tm.UTC().Format(DateTimeLayout)
			}
		}
	case List:
		items, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(items))
		for i, item := range items {
			if m, ok := item.(map[string]any); ok {
				out[i] = map[string]any(normalizePayload(f.Of, m))
				continue
			}
			out[i] = plainNumbers(item)
		}
		return out
	}
	return plainNumbers(v)
}

// toRemote converts a local field value to remote form.
func (f Field) toRemote(v any, conv transform.Converter) any {
	switch f.Kind {
	case Date, DateTime:
		switch t := v.(type) {
		case string:
			if tm, ok := transform.ParseDate(t); ok {
				return docstore.TimestampOf(tm)
			}
			return t
		case time.Time:
			return docstore.TimestampOf(t)
		}
		return v
	case List:
		items, ok := v.([]any)
		if !ok {
			return conv.ToRemote(v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			if m, ok := item.(map[string]any); ok {
				out[i] = payloadToRemote(f.Of, m, conv)
				continue
			}
			out[i] = conv.ToRemote(item)
		}
		return out
	case Any:
		return conv.ToRemote(v)
	default:
		// Scalars are never sniffed: an id such as "2024-01-15" stays a string.
		return transform.Converter{}.ToRemote(v)
	}
}

// fromRemote converts a remote field value to local form.
func (f Field) fromRemote(v any, conv transform.Converter) any {
	switch f.Kind {
	case Date:
		if ts, ok := asTimestamp(v); ok {
			return ts.Time().Format(DateLayout)
		}
	case DateTime:
		if ts, ok := asTimestamp(v); ok {
			return ts.Time().Format(DateTimeLayout)
		}
	case List:
		items, ok := v.([]any)
		if !ok {
			break
		}
		out := make([]any, len(items))
		for i, item := range items {
			if m, ok := item.(map[string]any); ok {
				out[i] = map[string]any(payloadFromRemote(f.Of, m, conv))
				continue
			}
			out[i] = localize(conv.FromRemote(item))
		}
		return out
	}
	return localize(conv.FromRemote(v))
}

// parseLegacy parses one legacy column. An empty cell yields the default.
func (f Field) parseLegacy(cell string) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return plainNumbers(f.Default), nil
	}

	switch f.Kind {
	case String:
		return cell, nil
	case Number:
		n, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid number %q", f.Name, cell)
		}
		return n, nil
	case Money:
		d, err := decimal.NewFromString(strings.ReplaceAll(cell, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid amount %q", f.Name, cell)
		}
		return d.Round(2).InexactFloat64(), nil
	case Bool:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid bool %q", f.Name, cell)
		}
		return b, nil
	case Date, DateTime:
		if _, ok := transform.ParseDate(cell); !ok {
			return nil, fmt.Errorf("field %s: invalid date %q", f.Name, cell)
		}
		return f.normalize(cell), nil
	case Any, List:
		if strings.HasPrefix(cell, "{") || strings.HasPrefix(cell, "[") {
			var v any
			if err := json.Unmarshal([]byte(cell), &v); err != nil {
				return nil, fmt.Errorf("field %s: invalid JSON: %w", f.Name, err)
			}
			return f.normalize(v), nil
		}
		return cell, nil
	default:
		return cell, nil
	}
}

func normalizePayload(fields []Field, in map[string]any) schema.Payload {
	out := make(schema.Payload, len(in)+len(fields))
	for k, v := range in {
		out[k] = plainNumbers(v)
	}
	for _, f := range fields {
		v, ok := in[f.Name]
		if !ok {
			out[f.Name] = plainNumbers(f.Default)
			continue
		}
		out[f.Name] = f.normalize(v)
	}
	return out
}

func payloadToRemote(fields []Field, in map[string]any, conv transform.Converter) map[string]any {
	out := make(map[string]any, len(in))
	known := make(map[string]Field, len(fields))
	for _, f := range fields {
		known[f.Name] = f
	}
	for k, v := range in {
		if f, ok := known[k]; ok {
			out[k] = f.toRemote(v, conv)
			continue
		}
		out[k] = conv.ToRemote(v)
	}
	return out
}

func payloadFromRemote(fields []Field, in map[string]any, conv transform.Converter) schema.Payload {
	out := make(map[string]any, len(in))
	known := make(map[string]Field, len(fields))
	for _, f := range fields {
		known[f.Name] = f
	}
	for k, v := range in {
		if f, ok := known[k]; ok {
			out[k] = f.fromRemote(v, conv)
			continue
		}
		out[k] = localize(conv.FromRemote(v))
	}
	return normalizePayload(fields, out)
}

// localize renders time values as RFC3339 strings, the local on-disk form.
func localize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(DateTimeLayout)
	case map[string]any:
		for k, e := range t {
			t[k] = localize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = localize(e)
		}
		return t
	default:
		return v
	}
}

// plainNumbers deep-copies v with every number widened to float64, the form
// numbers take after a JSON round trip through the remote store.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainNumbers(e)
		}
		return out
	case schema.Payload:
		out := make(schema.Payload, len(t))
		for k, e := range t {
			out[k] = plainNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainNumbers(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainNumbers(e)
		}
		return out
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case int, int32, int64, float32, json.Number:
		if f, ok := toFloat(t); ok {
			return f
		}
		return v
	default:
		return schema.CloneValue(v)
	}
}

func asTimestamp(v any) (docstore.Timestamp, bool) {
	switch t := v.(type) {
	case docstore.Timestamp:
		return t, true
	case *docstore.Timestamp:
		if t != nil {
			return *t, true
		}
	case time.Time:
		return docstore.TimestampOf(t), true
	}
	return docstore.Timestamp{}, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(t), ",", ""))
		return d, err == nil
	case decimal.Decimal:
		return t, true
	default:
		f, ok := toFloat(v)
		if !ok {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(f), true
	}
}
