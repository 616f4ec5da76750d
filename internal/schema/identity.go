package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidDocID is returned when a document id cannot be split into a group key.
	ErrInvalidDocID = errors.New("invalid document id")

	// ErrInvalidFileName is returned when a file name does not follow the
	// {year}_{month}_{entity}.{ext} convention.
	ErrInvalidFileName = errors.New("invalid file name")
)

// BackupSuffix marks ledger/backup variants of a data file.
const BackupSuffix = "_backup"

// GroupKey identifies one document: a subject, optionally scoped to a month.
// Single (non time-keyed) documents leave Year and Month at zero.
type GroupKey struct {
	SubjectID string
	Year      int
	Month     int
}

// IsMonthly reports whether the key addresses a Monthly Document.
func (g GroupKey) IsMonthly() bool {
	return g.Year != 0 || g.Month != 0
}

// DocID returns the document id for this key.
func (g GroupKey) DocID() string {
	if !g.IsMonthly() {
		return g.SubjectID
	}
	return DocID(g.SubjectID, g.Year, g.Month)
}

// String renders the key the way progress messages print it: "EMP001 2024-1".
func (g GroupKey) String() string {
	if !g.IsMonthly() {
		return g.SubjectID
	}
	return fmt.Sprintf("%s %d-%d", g.SubjectID, g.Year, g.Month)
}

// Validate checks the key's fields.
func (g GroupKey) Validate() error {
	if g.SubjectID == "" {
		return fmt.Errorf("subject id is required")
	}
	if !g.IsMonthly() {
		return nil
	}
	if g.Year < 1 {
		return fmt.Errorf("year must be positive (got %d)", g.Year)
	}
	if g.Month < 1 || g.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12 (got %d)", g.Month)
	}
	return nil
}

// Less orders keys by subject, then year, then month.
func (g GroupKey) Less(o GroupKey) bool {
	if g.SubjectID != o.SubjectID {
		return g.SubjectID < o.SubjectID
	}
	if g.Year != o.Year {
		return g.Year < o.Year
	}
	return g.Month < o.Month
}

// DocID formats "{subjectId}_{year}_{month}" with an unpadded month.
func DocID(subjectID string, year, month int) string {
	return fmt.Sprintf("%s_%d_%d", subjectID, year, month)
}

// ParseDocID is the inverse of GroupKey.DocID.
//
// The year and month are taken from the last two underscore separated parts so
// subject ids that contain underscores survive. An id whose tail is not a valid
// year/month pair is treated as a single (non time-keyed) document id.
func ParseDocID(id string) (GroupKey, error) {
	if id == "" {
		return GroupKey{}, fmt.Errorf("%w: empty id", ErrInvalidDocID)
	}

	parts := strings.Split(id, "_")
	if len(parts) >= 3 {
		subject := strings.Join(parts[:len(parts)-2], "_")
		year, yerr := strconv.Atoi(parts[len(parts)-2])
		month, merr := strconv.Atoi(parts[len(parts)-1])
		if yerr == nil && merr == nil && subject != "" {
			key := GroupKey{SubjectID: subject, Year: year, Month: month}
			if err := key.Validate(); err != nil {
				return GroupKey{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocID, id, err)
			}
			return key, nil
		}
	}

	return GroupKey{SubjectID: id}, nil
}

// MonthlyFileName returns "{year}_{month}_{entity}{ext}".
func MonthlyFileName(year, month int, entity, ext string) string {
	return fmt.Sprintf("%d_%d_%s%s", year, month, entity, ext)
}

// BackupFileName returns "{year}_{month}_{entity}_backup{ext}".
func BackupFileName(year, month int, entity, ext string) string {
	return fmt.Sprintf("%d_%d_%s%s%s", year, month, entity, BackupSuffix, ext)
}

// FileName is a parsed monthly file name.
type FileName struct {
	Year   int
	Month  int
	Entity string
	Backup bool
	Ext    string
}

// ParseMonthlyFileName parses names such as "2024_1_attendance.csv" or
// "2024_1_missing_time_backup.json".
func ParseMonthlyFileName(name string) (FileName, error) {
	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		ext = name[i:]
		name = name[:i]
	}

	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 {
		return FileName{}, fmt.Errorf("%w: expected {year}_{month}_{entity}, got %q", ErrInvalidFileName, name+ext)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return FileName{}, fmt.Errorf("%w: bad year in %q", ErrInvalidFileName, name+ext)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return FileName{}, fmt.Errorf("%w: bad month in %q", ErrInvalidFileName, name+ext)
	}

	fn := FileName{Year: year, Month: month, Entity: parts[2], Ext: ext}
	if strings.HasSuffix(fn.Entity, BackupSuffix) {
		fn.Backup = true
		fn.Entity = strings.TrimSuffix(fn.Entity, BackupSuffix)
	}
	if fn.Entity == "" {
		return FileName{}, fmt.Errorf("%w: missing entity in %q", ErrInvalidFileName, name+ext)
	}

	return fn, nil
}
