// Package ledger keeps the append-only change history of synced documents.
//
// Every time a push overwrites records that already existed, the field-level
// differences are appended to a ledger document keyed exactly like the data
// document:
//
//	{
//	  "subjectId": "EMP001", "year": 2024, "month": 1,
//	  "backups": [
//	    {"timestamp": ..., "changes": [
//	      {"day": "1", "field": "timeIn", "oldValue": "09:00", "newValue": "08:30"}
//	    ]}
//	  ]
//	}
//
// Appending is best effort. AppendBackup logs failures and never returns
// them, so history can never fail the write it describes.
//
// Growth is unbounded unless Options.MaxEntries is set; Prune removes
// entries older than a cutoff on demand.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/schema"
)

// Entry is one append: every change detected by one write.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Changes   []Change  `json:"changes"`
}

// Document is the ledger of one data document.
type Document struct {
	SubjectID string
	Year      int
	Month     int
	Backups   []Entry
}

// Group returns the key of the data document this ledger belongs to.
func (d *Document) Group() schema.GroupKey {
	return schema.GroupKey{SubjectID: d.SubjectID, Year: d.Year, Month: d.Month}
}

// Storage persists ledger documents.
type Storage interface {
	// Load returns the ledger for key, or nil when none exists yet.
	Load(ctx context.Context, key schema.GroupKey) (*Document, error)
	Save(ctx context.Context, key schema.GroupKey, doc *Document) error
	// List returns every ledger document.
	List(ctx context.Context) ([]*Document, error)
}

// Options configures a Ledger.
type Options struct {
	// MaxEntries keeps only the newest entries per document. Zero keeps all.
	MaxEntries int

	Logger logrus.FieldLogger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Ledger appends change history to a Storage.
type Ledger struct {
	storage    Storage
	maxEntries int
	logger     logrus.FieldLogger
	now        func() time.Time
}

// New creates a ledger over storage. opts may be nil.
func New(storage Storage, opts *Options) *Ledger {
	if opts == nil {
		opts = &Options{}
	}
	l := &Ledger{
		storage:    storage,
		maxEntries: opts.MaxEntries,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if l.logger == nil {
		l.logger = logrus.StandardLogger()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// AppendBackup records changes for key. It is a no-op when changes is empty.
// Failures are logged and swallowed.
func (l *Ledger) AppendBackup(ctx context.Context, key schema.GroupKey, changes []Change) {
	if len(changes) == 0 {
		return
	}
	if err := l.Append(ctx, key, changes); err != nil {
		l.logger.WithFields(logrus.Fields{
			"subject": key.SubjectID,
			"year":    key.Year,
			"month":   key.Month,
			"changes": len(changes),
		}).WithError(err).Warn("failed to append backup")
	}
}

// Append is AppendBackup that reports its error.
func (l *Ledger) Append(ctx context.Context, key schema.GroupKey, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	doc, err := l.storage.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load ledger for %s: %w", key, err)
	}
	if doc == nil {
		doc = &Document{SubjectID: key.SubjectID, Year: key.Year, Month: key.Month}
	}

	doc.Backups = append(doc.Backups, Entry{
		Timestamp: l.now().UTC(),
		Changes:   append([]Change(nil), changes...),
	})
	if l.maxEntries > 0 && len(doc.Backups) > l.maxEntries {
		doc.Backups = doc.Backups[len(doc.Backups)-l.maxEntries:]
	}

	if err := l.storage.Save(ctx, key, doc); err != nil {
		return fmt.Errorf("failed to save ledger for %s: %w", key, err)
	}
	return nil
}

// History returns the ledger for key, or nil when nothing was recorded.
func (l *Ledger) History(ctx context.Context, key schema.GroupKey) (*Document, error) {
	doc, err := l.storage.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", key, err)
	}
	return doc, nil
}

// Prune drops entries older than before from every ledger document and
// returns how many entries were removed. Documents left without entries are
// kept (empty) so their history start stays visible.
func (l *Ledger) Prune(ctx context.Context, before time.Time) (int, error) {
	docs, err := l.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list ledgers: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		kept := doc.Backups[:0]
		for _, e := range doc.Backups {
			if e.Timestamp.Before(before) {
				continue
			}
			kept = append(kept, e)
		}
		n := len(doc.Backups) - len(kept)
		if n == 0 {
			continue
		}
		doc.Backups = kept

		if err := l.storage.Save(ctx, doc.Group(), doc); err != nil {
			return removed, fmt.Errorf("failed to save pruned ledger for %s: %w", doc.Group(), err)
		}
		removed += n
		l.logger.WithFields(logrus.Fields{
			"subject": doc.SubjectID,
			"year":    doc.Year,
			"month":   doc.Month,
			"removed": n,
		}).Debug("pruned ledger")
	}
	return removed, nil
}
