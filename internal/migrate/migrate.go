package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

// ProgressFunc receives one human readable line per migrated or skipped file.
type ProgressFunc func(message string)

// Options configures a Migrator.
type Options struct {
	// DryRun parses every legacy file but writes nothing.
	DryRun bool

	Logger logrus.FieldLogger

	// Now stamps lastModified on migrated documents (tests).
	Now func() time.Time
}

// Result summarises one run.
type Result struct {
	FilesMigrated  int
	FilesSkipped   int
	RecordsWritten int
	Errors         []string
}

// Add folds o into r.
func (r *Result) Add(o *Result) {
	if o == nil {
		return
	}
	r.FilesMigrated += o.FilesMigrated
	r.FilesSkipped += o.FilesSkipped
	r.RecordsWritten += o.RecordsWritten
	r.Errors = append(r.Errors, o.Errors...)
}

// Migrator converts one entity's legacy CSV files to JSON documents.
type Migrator struct {
	codec  *entity.Codec
	root   string
	dir    string
	dryRun bool
	logger logrus.FieldLogger
	now    func() time.Time
}

// New returns a migrator for codec under dbRoot. opts may be nil.
func New(dbRoot string, codec *entity.Codec, opts *Options) *Migrator {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Migrator{
		codec:  codec,
		root:   dbRoot,
		dir:    filepath.Join(dbRoot, codec.Area),
		dryRun: opts.DryRun,
		logger: logger.WithField("entity", codec.Name),
		now:    now,
	}
}

// MigrateCSVToJSON migrates every registered entity under dbRoot.
func MigrateCSVToJSON(ctx context.Context, dbRoot string, onProgress ProgressFunc) (*Result, error) {
	return MigrateAll(ctx, dbRoot, nil, onProgress)
}

// MigrateAll is MigrateCSVToJSON with options.
func MigrateAll(ctx context.Context, dbRoot string, opts *Options, onProgress ProgressFunc) (*Result, error) {
	total := &Result{}
	for _, codec := range entity.All() {
		res, err := New(dbRoot, codec, opts).Run(ctx, onProgress)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Run migrates the entity's legacy data files. Per-file failures are
// reported and collected in Result.Errors; only cancellation or an
// unreadable area folder stop the run.
func (m *Migrator) Run(ctx context.Context, onProgress ProgressFunc) (*Result, error) {
	if m.codec.Grouping == entity.Single {
		return m.runSingle(ctx, onProgress)
	}
	return m.runMonthly(ctx, onProgress)
}

func (m *Migrator) report(onProgress ProgressFunc, format string, args ...any) {
	if onProgress != nil {
		onProgress(fmt.Sprintf(format, args...))
	}
}

func (m *Migrator) fail(res *Result, onProgress ProgressFunc, file string, err error) {
	msg := fmt.Sprintf("Error migrating %s: %v", file, err)
	res.Errors = append(res.Errors, msg)
	m.logger.WithField("file", file).WithError(err).Warn("migration failed")
	m.report(onProgress, "%s", msg)
}

// subjects returns the subject folders of the area, sorted. A missing area
// yields none.
func (m *Migrator) subjects() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// legacyFile is a monthly CSV file found under a subject folder.
type legacyFile struct {
	subject string
	path    string
	name    schema.FileName
}

// legacyFiles lists the monthly CSV files of the entity. backups selects the
// _backup variants instead of the data files. Names that do not parse are
// returned with a zero FileName so the caller can report them.
func (m *Migrator) legacyFiles(subject string, backups bool) ([]legacyFile, []string, error) {
	dir := filepath.Join(m.dir, subject)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []legacyFile
	var bad []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		fn, err := schema.ParseMonthlyFileName(e.Name())
		if err != nil {
			if strings.Contains(e.Name(), m.codec.FileEntity) {
				bad = append(bad, filepath.Join(dir, e.Name()))
			}
			continue
		}
		if fn.Entity != m.codec.FileEntity || fn.Backup != backups {
			continue
		}
		files = append(files, legacyFile{subject: subject, path: filepath.Join(dir, e.Name()), name: fn})
	}
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i].name, files[j].name
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	sort.Strings(bad)
	return files, bad, nil
}

func (m *Migrator) runMonthly(ctx context.Context, onProgress ProgressFunc) (*Result, error) {
	res := &Result{}
	subjects, err := m.subjects()
	if err != nil {
		return res, err
	}
	if len(subjects) == 0 {
		m.report(onProgress, "No %s data to migrate", m.codec.Name)
		return res, nil
	}

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		files, bad, err := m.legacyFiles(subject, false)
		if err != nil {
			m.fail(res, onProgress, filepath.Join(m.dir, subject), err)
			continue
		}
		for _, path := range bad {
			res.FilesSkipped++
			m.report(onProgress, "Skipping %s: unrecognised file name", path)
		}
		for _, f := range files {
			m.migrateMonthlyFile(f, res, onProgress)
		}
	}
	return res, nil
}

func (m *Migrator) migrateMonthlyFile(f legacyFile, res *Result, onProgress ProgressFunc) {
	group := schema.GroupKey{SubjectID: f.subject, Year: f.name.Year, Month: f.name.Month}
	target := filepath.Join(filepath.Dir(f.path), schema.MonthlyFileName(group.Year, group.Month, m.codec.FileEntity, ".json"))

	if _, err := os.Stat(target); err == nil {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s: already migrated", group)
		return
	}

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

	doc := schema.NewDocument(group)
	records := make(map[string]schema.Payload, len(lines))
	for i, line := range lines {
		cells, err := splitLine(line)
		if err != nil {
			m.fail(res, onProgress, f.path, fmt.Errorf("line %d: %w", i+1, err))
			return
		}
		if i == 0 && isHeader(cells, m.codec.LegacyColumns) {
			continue
		}
		row, err := m.codec.ParseLegacyRow(cells, line)
		if err != nil {
			m.fail(res, onProgress, f.path, fmt.Errorf("line %d: %w", i+1, err))
			return
		}
		if year, month, ok := m.codec.Period(row.Payload); ok && (year != group.Year || month != group.Month) {
			m.logger.WithFields(logrus.Fields{
				"file":   f.path,
				"record": row.Key,
				"period": fmt.Sprintf("%d-%d", year, month),
			}).Warn("record period does not match file month")
		}
		records[row.Key] = row.Payload
	}
	if len(records) == 0 {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s: empty file", f.path)
		return
	}
	doc.Merge(records)
	doc.Touch(m.now())

	if !m.dryRun {
		if err := schema.WriteDocumentFile(target, m.codec.RecordsField, doc); err != nil {
			m.fail(res, onProgress, f.path, err)
			return
		}
	}
	res.FilesMigrated++
	res.RecordsWritten += len(records)
	m.report(onProgress, "Migrated %s (%d records)", group, len(records))
}

func (m *Migrator) runSingle(ctx context.Context, onProgress ProgressFunc) (*Result, error) {
	res := &Result{}
	path := filepath.Join(m.dir, m.codec.LegacyName+".csv")

	lines, err := readLines(path)
	if errors.Is(err, fs.ErrNotExist) {
		m.report(onProgress, "No %s data to migrate", m.codec.Name)
		return res, nil
	}
	if err != nil {
		m.fail(res, onProgress, path, err)
		return res, nil
	}
	if len(lines) == 0 {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s: empty file", path)
		return res, nil
	}

	bySubject := make(map[string]map[string]schema.Payload)
	for i, line := range lines {
		cells, err := splitLine(line)
		if err == nil && i == 0 && isHeader(cells, m.codec.LegacyColumns) {
			continue
		}
		var row entity.LegacyRow
		if err == nil {
			row, err = m.codec.ParseLegacyRow(cells, line)
		}
		if err != nil {
			// One bad row must not lose the rest of the file.
			m.fail(res, onProgress, path, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		if bySubject[row.Subject] == nil {
			bySubject[row.Subject] = make(map[string]schema.Payload)
		}
		bySubject[row.Subject][row.Key] = row.Payload
	}
	if len(bySubject) == 0 && len(res.Errors) == 0 {
		res.FilesSkipped++
		m.report(onProgress, "Skipping %s: empty file", path)
		return res, nil
	}

	subjects := make([]string, 0, len(bySubject))
	for s := range bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		target := filepath.Join(m.dir, subject+".json")
		if _, err := os.Stat(target); err == nil {
			res.FilesSkipped++
			m.report(onProgress, "Skipping %s: already migrated", subject)
			continue
		}

		doc := schema.NewDocument(schema.GroupKey{SubjectID: subject})
		doc.Merge(bySubject[subject])
		doc.Touch(m.now())
		if !m.dryRun {
			if err := schema.WriteDocumentFile(target, m.codec.RecordsField, doc); err != nil {
				m.fail(res, onProgress, target, err)
				continue
			}
		}
		res.FilesMigrated++
		res.RecordsWritten += len(bySubject[subject])
		m.report(onProgress, "Migrated %s (%d records)", subject, len(bySubject[subject]))
	}
	return res, nil
}
