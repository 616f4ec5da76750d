package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sweldo/sweldo-sync/internal/schema"
	"github.com/sweldo/sweldo-sync/internal/transform"
)

// ErrUnknownEntity is returned by Lookup for names that are not registered.
var ErrUnknownEntity = errors.New("unknown entity")

// Grouping says how records are split into documents.
type Grouping int

const (
	// Monthly entities keep one document per subject per month.
	Monthly Grouping = iota
	// Single entities keep one document per subject.
	Single
)

func (g Grouping) String() string {
	if g == Single {
		return "single"
	}
	return "monthly"
}

// legacyNamespace seeds the deterministic ids given to legacy rows that have
// none.
var legacyNamespace = uuid.MustParse("6f1c8a52-3f0e-4c55-9b2a-2d0c4e7a9b11")

// Codec describes one entity: where it lives, what its records look like and
// how legacy rows map onto them.
type Codec struct {
	// Name is the entity name used on the command line and in messages.
	Name string
	// Collection is the remote collection; ledger documents live in
	// Collection + "_backups".
	Collection string
	// Area is the folder under the database root.
	Area string
	// FileEntity is the {entity} part of monthly file names.
	FileEntity string
	// RecordsField is the document field holding the records map.
	RecordsField string
	Grouping     Grouping

	Fields []Field

	// PeriodField names the date field that decides a record's month.
	PeriodField string

	// LegacyColumns is the positional column order of legacy rows.
	LegacyColumns []string
	// LegacyName is the legacy file stem of single entities
	// ({area}/{LegacyName}.csv).
	LegacyName string
	// KeyColumn is the legacy column holding the record key.
	KeyColumn string
	// NumericKey normalises keys such as "01" to "1".
	NumericKey bool
	// IDField receives a generated id when a legacy row has no key.
	IDField string
	// SubjectColumn is the legacy column naming the subject of single
	// entities. SubjectOf is used when it is empty.
	SubjectColumn string
	SubjectOf     func(p schema.Payload, key string) (string, error)

	conv transform.Converter
}

// BackupCollection returns the ledger collection name.
func (c *Codec) BackupCollection() string {
	return c.Collection + "_backups"
}

// WithSniffing returns a copy of the codec whose Any fields convert
// date-like strings to timestamps on push.
func (c *Codec) WithSniffing(on bool) *Codec {
	cp := *c
	cp.conv = transform.Converter{SniffStrings: on}
	return &cp
}

// Field returns the named field.
func (c *Codec) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Normalize fills missing fields with their defaults and coerces known fields
// to their local form. Unknown fields pass through.
func (c *Codec) Normalize(p schema.Payload) schema.Payload {
	return normalizePayload(c.Fields, p)
}

// ToRemote converts a local payload to remote form.
func (c *Codec) ToRemote(p schema.Payload) map[string]any {
	return payloadToRemote(c.Fields, c.Normalize(p), c.conv)
}

// FromRemote converts a remote record to a normalised local payload.
func (c *Codec) FromRemote(m map[string]any) schema.Payload {
	return payloadFromRemote(c.Fields, m, c.conv)
}

// Period returns the year and month of the record's period field.
func (c *Codec) Period(p schema.Payload) (year, month int, ok bool) {
	if c.PeriodField == "" {
		return 0, 0, false
	}
	s, _ := p[c.PeriodField].(string)
	tm, ok := transform.ParseDate(s)
	if !ok {
		return 0, 0, false
	}
	return tm.Year(), int(tm.Month()), true
}

// LegacyRow is a legacy line mapped onto a record.
type LegacyRow struct {
	Key     string
	Subject string
	Payload schema.Payload
}

// ParseLegacyRow maps one legacy row positionally onto the codec's fields.
// raw is the original line and seeds generated ids. Missing trailing columns
// take their defaults; extra columns are ignored.
func (c *Codec) ParseLegacyRow(cells []string, raw string) (LegacyRow, error) {
	var row LegacyRow
	values := make(map[string]any, len(c.LegacyColumns))
	extracted := make(map[string]string, 2)

	for i, col := range c.LegacyColumns {
		cell := ""
		if i < len(cells) {
			cell = strings.TrimSpace(cells[i])
		}
		f, known := c.Field(col)
		if !known {
			// Key or subject column that is not part of the payload.
			extracted[col] = cell
			continue
		}
		v, err := f.parseLegacy(cell)
		if err != nil {
			return LegacyRow{}, err
		}
		values[col] = v
	}
	row.Payload = c.Normalize(values)

	row.Key = extracted[c.KeyColumn]
	if row.Key == "" {
		if s, ok := row.Payload[c.KeyColumn].(string); ok {
			row.Key = s
		}
	}
	if row.Key == "" && c.IDField != "" {
		row.Key = uuid.NewSHA1(legacyNamespace, []byte(c.Name+"\x00"+raw)).String()
		row.Payload[c.IDField] = row.Key
	}
	if row.Key == "" {
		return LegacyRow{}, fmt.Errorf("missing %s", c.KeyColumn)
	}
	if c.NumericKey {
		n, err := strconv.Atoi(row.Key)
		if err != nil {
			return LegacyRow{}, fmt.Errorf("invalid %s %q", c.KeyColumn, row.Key)
		}
		row.Key = strconv.Itoa(n)
	}

	if c.Grouping == Single {
		subject, err := c.subject(row, extracted)
		if err != nil {
			return LegacyRow{}, err
		}
		row.Subject = subject
	}

	return row, nil
}

func (c *Codec) subject(row LegacyRow, extracted map[string]string) (string, error) {
	if c.SubjectColumn != "" {
		if s := extracted[c.SubjectColumn]; s != "" {
			return s, nil
		}
		if s, ok := row.Payload[c.SubjectColumn].(string); ok && s != "" {
			return s, nil
		}
		return "", fmt.Errorf("missing %s", c.SubjectColumn)
	}
	if c.SubjectOf != nil {
		return c.SubjectOf(row.Payload, row.Key)
	}
	return row.Key, nil
}

// Validate checks that the codec is internally consistent.
func (c *Codec) Validate() error {
	if c.Name == "" || c.Collection == "" || c.Area == "" || c.RecordsField == "" {
		return fmt.Errorf("codec %q: name, collection, area and records field are required", c.Name)
	}
	if c.Grouping == Monthly && c.FileEntity == "" {
		return fmt.Errorf("codec %q: monthly codecs need a file entity", c.Name)
	}
	if c.Grouping == Single && c.LegacyName == "" {
		return fmt.Errorf("codec %q: single codecs need a legacy name", c.Name)
	}
	if c.KeyColumn == "" {
		return fmt.Errorf("codec %q: key column is required", c.Name)
	}
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if seen[f.Name] {
			return fmt.Errorf("codec %q: duplicate field %s", c.Name, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
