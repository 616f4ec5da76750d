// Package localstore is the on-disk document store the desktop application
// reads and writes.
//
// Layout under the database root:
//
//	{area}/{subject}/{year}_{month}_{entity}.json         monthly document
//	{area}/{subject}/{year}_{month}_{entity}_backup.json  its change ledger
//	{area}/{subject}.json                                 single document
//	{area}/{subject}_backup.json                          its change ledger
//
// A missing area or subject folder means "no data yet" and loads as empty.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ledger"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

// Options configures a FileModel.
type Options struct {
	Logger logrus.FieldLogger

	// DisableLedger skips the local _backup.json history.
	DisableLedger bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// FileModel stores one entity's documents as JSON files.
type FileModel struct {
	codec  *entity.Codec
	dir    string
	ledger *ledger.Ledger
	logger logrus.FieldLogger
	now    func() time.Time

	mu sync.Mutex
}

// New returns the model for codec under dbRoot. opts may be nil.
func New(dbRoot string, codec *entity.Codec, opts *Options) *FileModel {
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

	m := &FileModel{
		codec:  codec,
		dir:    filepath.Join(dbRoot, codec.Area),
		logger: logger.WithField("entity", codec.Name),
		now:    now,
	}
	if !opts.DisableLedger {
		m.ledger = ledger.New(ledger.NewFileStore(dbRoot, codec), &ledger.Options{Logger: m.logger, Now: now})
	}
	return m
}

// Codec returns the model's entity.
func (m *FileModel) Codec() *entity.Codec {
	return m.codec
}

// Dir returns the entity's area folder.
func (m *FileModel) Dir() string {
	return m.dir
}

// Path returns the document file for group.
func (m *FileModel) Path(group schema.GroupKey) string {
	if m.codec.Grouping == entity.Single {
		return filepath.Join(m.dir, group.SubjectID+".json")
	}
	return filepath.Join(m.dir, group.SubjectID, schema.MonthlyFileName(group.Year, group.Month, m.codec.FileEntity, ".json"))
}

// Load reads the document for group, or returns nil when it does not exist.
func (m *FileModel) Load(ctx context.Context, group schema.GroupKey) (*schema.Document, error) {
	doc, err := schema.ReadDocumentFile(m.Path(group), m.codec.RecordsField)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return doc, err
}

// LoadAll returns every record of the entity, ordered by group then key.
func (m *FileModel) LoadAll(ctx context.Context) ([]schema.Record, error) {
	files, err := m.documentFiles()
	if err != nil {
		return nil, err
	}

	var records []schema.Record
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := schema.ReadDocumentFile(f.path, m.codec.RecordsField)
		if err != nil {
			return nil, err
		}
		for _, key := range doc.Keys() {
			records = append(records, schema.Record{
				Group:   f.group,
				Key:     key,
				Payload: m.codec.Normalize(doc.Records[key]),
			})
		}
	}
	return records, nil
}

type documentFile struct {
	path  string
	group schema.GroupKey
}

// documentFiles lists the current-format document files, ordered by group.
func (m *FileModel) documentFiles() ([]documentFile, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.dir, err)
	}

	var files []documentFile
	for _, e := range entries {
		name := e.Name()
		if m.codec.Grouping == entity.Single {
			if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasSuffix(name, schema.BackupSuffix+".json") {
				continue
			}
			files = append(files, documentFile{
				path:  filepath.Join(m.dir, name),
				group: schema.GroupKey{SubjectID: strings.TrimSuffix(name, ".json")},
			})
			continue
		}

		if !e.IsDir() {
			continue
		}
		subjectDir := filepath.Join(m.dir, name)
		subEntries, err := os.ReadDir(subjectDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", subjectDir, err)
		}
		for _, se := range subEntries {
			if se.IsDir() {
				continue
			}
			fn, err := schema.ParseMonthlyFileName(se.Name())
			if err != nil || fn.Backup || fn.Ext != ".json" || fn.Entity != m.codec.FileEntity {
				continue
			}
			files = append(files, documentFile{
				path:  filepath.Join(subjectDir, se.Name()),
				group: schema.GroupKey{SubjectID: name, Year: fn.Year, Month: fn.Month},
			})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].group.Less(files[j].group) })
	return files, nil
}

// SaveOrUpdate merges records into the group's document, last write wins per
// key. Overwritten records whose payload changed are added to the local
// ledger.
func (m *FileModel) SaveOrUpdate(ctx context.Context, group schema.GroupKey, records []schema.Record) error {
	if err := group.Validate(); err != nil {
		return fmt.Errorf("invalid group %s: %w", group, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.Load(ctx, group)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = schema.NewDocument(group)
	}
	doc.Meta.SubjectID, doc.Meta.Year, doc.Meta.Month = group.SubjectID, group.Year, group.Month

	incoming := make(map[string]schema.Payload, len(records))
	for _, r := range records {
		incoming[r.Key] = m.codec.Normalize(r.Payload)
	}
	replaced := doc.Merge(incoming)
	doc.Touch(m.now())

	if err := schema.WriteDocumentFile(m.Path(group), m.codec.RecordsField, doc); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", m.codec.Name, group, err)
	}

	if m.ledger != nil {
		m.ledger.AppendBackup(ctx, group, ledger.Diff(replaced, incoming))
	}

	m.logger.WithFields(logrus.Fields{
		"subject": group.SubjectID,
		"year":    group.Year,
		"month":   group.Month,
		"records": len(records),
	}).Debug("saved document")
	return nil
}

// DeleteRecords removes keys from the group's document. Deleting from a
// missing document is a no-op.
func (m *FileModel) DeleteRecords(ctx context.Context, group schema.GroupKey, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.Load(ctx, group)
	if err != nil || doc == nil {
		return err
	}

	removed := 0
	for _, k := range keys {
		if _, ok := doc.Records[k]; ok {
			delete(doc.Records, k)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}

	doc.Touch(m.now())
	if err := schema.WriteDocumentFile(m.Path(group), m.codec.RecordsField, doc); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", m.codec.Name, group, err)
	}
	return nil
}

// Ledger returns the local change ledger, or nil when disabled.
func (m *FileModel) Ledger() *ledger.Ledger {
	return m.ledger
}
