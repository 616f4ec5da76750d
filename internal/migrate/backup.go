package migrate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ledger"
	"github.com/sweldo/sweldo-sync/internal/schema"
	"github.com/sweldo/sweldo-sync/internal/transform"
)

// MigrateBackups converts the entity's legacy {year}_{month}_{entity}_backup.csv
// files into ledger documents. Each line is
//
//	timestamp,day,field,oldValue,newValue
//
// and consecutive lines sharing a timestamp become one ledger entry. Single
// entities never had legacy backups and report nothing to do.
func (m *Migrator) MigrateBackups(ctx context.Context, onProgress ProgressFunc) (*Result, error) {
	res := &Result{}
	if m.codec.Grouping == entity.Single {
		return res, nil
	}

	subjects, err := m.subjects()
	if err != nil {
		return res, err
	}
	store := ledger.NewFileStore(m.root, m.codec)

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		files, _, err := m.legacyFiles(subject, true)
		if err != nil {
			m.fail(res, onProgress, subject, err)
			continue
		}
		for _, f := range files {
			m.migrateBackupFile(ctx, store, f, res, onProgress)
		}
	}
	return res, nil
}

// MigrateAllBackups runs MigrateBackups for every registered entity.
func MigrateAllBackups(ctx context.Context, dbRoot string, opts *Options, onProgress ProgressFunc) (*Result, error) {
	total := &Result{}
	for _, codec := range entity.All() {
		res, err := New(dbRoot, codec, opts).MigrateBackups(ctx, onProgress)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (m *Migrator) migrateBackupFile(ctx context.Context, store *ledger.FileStore, f legacyFile, res *Result, onProgress ProgressFunc) {
	group := schema.GroupKey{SubjectID: f.subject, Year: f.name.Year, Month: f.name.Month}

	lines, err := readLines(f.path)
	if err != nil {
		m.fail(res, onProgress, f.path, err)
		return
	}
	if len(lines) == 0 {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s: empty file", f.path)
		return
	}

	doc := &ledger.Document{SubjectID: group.SubjectID, Year: group.Year, Month: group.Month}
	var lastRaw string
	for i, line := range lines {
		cells, err := splitLine(line)
		if err != nil {
			m.fail(res, onProgress, f.path, fmt.Errorf("line %d: %w", i+1, err))
			return
		}
		if i == 0 && isHeader(cells, []string{"timestamp"}) {
			continue
		}
		if len(cells) < 5 {
			m.fail(res, onProgress, f.path, fmt.Errorf("line %d: expected 5 columns, got %d", i+1, len(cells)))
			return
		}
		ts, err := parseBackupTimestamp(cells[0])
		if err != nil {
			m.fail(res, onProgress, f.path, fmt.Errorf("line %d: %w", i+1, err))
			return
		}

		change := ledger.Change{Day: cells[1], Field: cells[2], OldValue: cells[3], NewValue: cells[4]}
		if n := len(doc.Backups); n > 0 && cells[0] == lastRaw {
			doc.Backups[n-1].Changes = append(doc.Backups[n-1].Changes, change)
		} else {
			doc.Backups = append(doc.Backups, ledger.Entry{Timestamp: ts, Changes: []ledger.Change{change}})
		}
		lastRaw = cells[0]
	}
	if len(doc.Backups) == 0 {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s: empty file", f.path)
		return
	}

	// A ledger may already exist, written by a local save or an earlier
	// run. Legacy entries are merged into it; entries it holds are kept.
	existing, err := store.Load(ctx, group)
	if err != nil {
		m.fail(res, onProgress, f.path, err)
		return
	}
	merged, added := mergeEntries(existing, doc.Backups)
	if len(added) == 0 {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s backup: already migrated", group)
		return
	}
	doc.Backups = merged

	if !m.dryRun {
		if err := store.Save(ctx, group, doc); err != nil {
			m.fail(res, onProgress, f.path, err)
			return
		}
	}
	changes := 0
	for _, e := range added {
		changes += len(e.Changes)
	}
	res.FilesMigrated++
	res.RecordsWritten += changes
	m.report(onProgress, "Migrated %s backup (%d entries)", group, len(added))
}

// mergeEntries adds the legacy entries missing from existing and returns
// the result in timestamp order, along with the entries that were added.
// Entries with equal timestamps keep their relative order.
func mergeEntries(existing *ledger.Document, legacy []ledger.Entry) ([]ledger.Entry, []ledger.Entry) {
	if existing == nil {
		return legacy, legacy
	}
	seen := make(map[string]bool, len(existing.Backups))
	for _, e := range existing.Backups {
		seen[entryKey(e)] = true
	}

	merged := append([]ledger.Entry(nil), existing.Backups...)
	var added []ledger.Entry
	for _, e := range legacy {
		k := entryKey(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, e)
		added = append(added, e)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, added
}

// entryKey identifies an entry by its timestamp and changes. Values are
// compared in printed form since a stored ledger may hold them typed.
func entryKey(e ledger.Entry) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(e.Timestamp.UnixMilli(), 10))
	for _, c := range e.Changes {
		fmt.Fprintf(&b, "|%s/%s/%v/%v", c.Day, c.Field, c.OldValue, c.NewValue)
	}
	return b.String()
}

// parseBackupTimestamp accepts ISO dates and Unix milliseconds.
func parseBackupTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, ok := transform.ParseDate(s); ok {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
