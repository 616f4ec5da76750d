package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Payload is one record's flat field map. Values are JSON-like: nil, bool,
// float64, string, []any, map[string]any (and time.Time while converting).
type Payload map[string]any

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	return Payload(CloneMap(p))
}

// Record is a payload tagged with the document it belongs to.
type Record struct {
	Group   GroupKey
	Key     string
	Payload Payload
}

// Meta is the header block of every document.
type Meta struct {
	SubjectID    string
	Year         int
	Month        int
	LastModified time.Time
}

// Group returns the meta block's group key.
func (m Meta) Group() GroupKey {
	return GroupKey{SubjectID: m.SubjectID, Year: m.Year, Month: m.Month}
}

// Document is the in-memory form of a Monthly (or single) Document.
type Document struct {
	Meta    Meta
	Records map[string]Payload

	// Extra holds top-level fields this package does not model. They are
	// written back untouched.
	Extra map[string]any
}

// NewDocument returns an empty document for the given group.
func NewDocument(group GroupKey) *Document {
	return &Document{
		Meta:    Meta{SubjectID: group.SubjectID, Year: group.Year, Month: group.Month},
		Records: make(map[string]Payload),
	}
}

// Keys returns the record keys in a stable order: numeric keys (days) first in
// numeric order, then everything else lexically.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Records))
	for k := range d.Records {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Merge applies last-write-wins per record key and returns the payloads that
// were replaced, keyed by record key. Keys that did not exist before are not
// part of the returned map.
func (d *Document) Merge(records map[string]Payload) map[string]Payload {
	if d.Records == nil {
		d.Records = make(map[string]Payload)
	}
	replaced := make(map[string]Payload)
	for k, p := range records {
		if prev, ok := d.Records[k]; ok {
			replaced[k] = prev
		}
		d.Records[k] = p
	}
	return replaced
}

// Touch refreshes lastModified so that it strictly increases on every write.
func (d *Document) Touch(now time.Time) {
	now = now.UTC()
	if !d.Meta.LastModified.IsZero() && !now.After(d.Meta.LastModified) {
		now = d.Meta.LastModified.Add(time.Millisecond)
	}
	d.Meta.LastModified = now
}

// Validate checks the document header.
func (d *Document) Validate() error {
	if err := d.Meta.Group().Validate(); err != nil {
		return fmt.Errorf("invalid meta: %w", err)
	}
	return nil
}

// Encode renders the document as a JSON-like map in local form.
// lastModified is written as an RFC3339 string.
func (d *Document) Encode(recordsField string) map[string]any {
	out := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = CloneValue(v)
	}

	meta := map[string]any{"subjectId": d.Meta.SubjectID}
	if d.Meta.Group().IsMonthly() {
		meta["year"] = d.Meta.Year
		meta["month"] = d.Meta.Month
	}
	if !d.Meta.LastModified.IsZero() {
		meta["lastModified"] = d.Meta.LastModified.UTC().Format(time.RFC3339Nano)
	}
	out["meta"] = meta

	records := make(map[string]any, len(d.Records))
	for k, p := range d.Records {
		records[k] = map[string]any(p.Clone())
	}
	out[recordsField] = records

	return out
}

// DecodeDocument parses a JSON-like map produced by Encode (or by a remote
// store after timestamp conversion). lastModified may be a string or a
// time.Time. Records that are not objects make the document malformed.
func DecodeDocument(m map[string]any, recordsField string) (*Document, error) {
	rawMeta, ok := m["meta"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("malformed document: missing meta")
	}

	doc := &Document{Records: make(map[string]Payload)}

	subject, _ := rawMeta["subjectId"].(string)
	doc.Meta.SubjectID = subject

	var err error
	if doc.Meta.Year, err = intField(rawMeta, "year"); err != nil {
		return nil, fmt.Errorf("malformed document meta: %w", err)
	}
	if doc.Meta.Month, err = intField(rawMeta, "month"); err != nil {
		return nil, fmt.Errorf("malformed document meta: %w", err)
	}

	switch lm := rawMeta["lastModified"].(type) {
	case nil:
	case time.Time:
		doc.Meta.LastModified = lm.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, lm)
		if err != nil {
			return nil, fmt.Errorf("malformed document meta: lastModified: %w", err)
		}
		doc.Meta.LastModified = t.UTC()
	default:
		return nil, fmt.Errorf("malformed document meta: lastModified has type %T", lm)
	}

	if raw, present := m[recordsField]; present && raw != nil {
		records, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("malformed document: %s is %T, want object", recordsField, raw)
		}
		for k, v := range records {
			p, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("malformed document: record %q is %T, want object", k, v)
			}
			doc.Records[k] = Payload(CloneMap(p))
		}
	}

	for k, v := range m {
		if k == "meta" || k == recordsField {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]any)
		}
		doc.Extra[k] = CloneValue(v)
	}

	return doc, nil
}

func intField(m map[string]any, name string) (int, error) {
	switch v := m[name].(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s has type %T", name, v)
	}
}

// ReadDocumentFile reads and parses a document file.
// A missing file is reported with an error wrapping os.ErrNotExist.
func ReadDocumentFile(path, recordsField string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document file %s: %w", path, err)
	}

	doc, err := DecodeDocument(raw, recordsField)
	if err != nil {
		return nil, fmt.Errorf("invalid document file %s: %w", path, err)
	}

	return doc, nil
}

// WriteDocumentFile validates the document and writes it to path atomically.
func WriteDocumentFile(path, recordsField string, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid document: %w", err)
	}
	return WriteJSONFile(path, doc.Encode(recordsField))
}

// WriteJSONFile marshals v with indentation and writes it via a temp file and
// rename so readers never observe a partial file.
func WriteJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// SortKeys sorts record keys: numeric keys first in numeric order, then the
// rest lexically.
func SortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		ni, ei := parseUint(keys[i])
		nj, ej := parseUint(keys[j])
		switch {
		case ei && ej:
			if ni != nj {
				return ni < nj
			}
			return keys[i] < keys[j]
		case ei:
			return true
		case ej:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

func parseUint(s string) (uint64, bool) {
	if s == "" || len(s) > 18 {
		return 0, false
	}
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

// CloneMap deep-copies a JSON-like map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices; other values are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case Payload:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneMap(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}
