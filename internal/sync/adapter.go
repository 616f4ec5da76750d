package sync

import (
	"context"
	"fmt"
	"sort"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/batch"
	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ledger"
	"github.com/sweldo/sweldo-sync/internal/schema"
	"github.com/sweldo/sweldo-sync/internal/transform"
)

// DefaultBatchSize is the number of documents pushed concurrently.
const DefaultBatchSize = 5

// Options configures an Adapter.
type Options struct {
	// BatchSize is the number of documents written concurrently during a
	// push. Zero means DefaultBatchSize.
	BatchSize int

	// Ledger records overwritten fields. Nil means a ledger in the
	// entity's "_backups" collection of the same store.
	Ledger *ledger.Ledger

	// DisableLedger turns change history off entirely.
	DisableLedger bool

	Logger logrus.FieldLogger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Adapter syncs one entity between a LocalModel and a docstore.Store.
type Adapter struct {
	codec     *entity.Codec
	model     LocalModel
	store     docstore.Store
	ledger    *ledger.Ledger
	batchSize int
	logger    logrus.FieldLogger
	now       func() time.Time

	state atomic.Int32
}

var _ Syncer = (*Adapter)(nil)

// New creates an adapter. opts may be nil.
//
// Example:
//
//	store := docstore.NewMemoryStore()
//	model := localstore.New("/data/sweldo", entity.Attendance, nil)
//	adapter := sync.New(entity.Attendance, model, store, nil)
//	err := adapter.SyncToRemote(ctx, nil)
func New(codec *entity.Codec, model LocalModel, store docstore.Store, opts *Options) *Adapter {
	if opts == nil {
		opts = &Options{}
	}

	a := &Adapter{
		codec:     codec,
		model:     model,
		store:     store,
		batchSize: opts.BatchSize,
		now:       opts.Now,
	}
	if a.batchSize == 0 {
		a.batchSize = DefaultBatchSize
	}
	if a.now == nil {
		a.now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	a.logger = logger.WithFields(logrus.Fields{"entity": codec.Name, "collection": codec.Collection})

	switch {
	case opts.DisableLedger:
	case opts.Ledger != nil:
		a.ledger = opts.Ledger
	default:
		a.ledger = ledger.New(ledger.NewRemoteStore(store, codec), &ledger.Options{Logger: a.logger, Now: a.now})
	}

	return a
}

// Codec returns the adapter's entity.
func (a *Adapter) Codec() *entity.Codec {
	return a.codec
}

// Ledger returns the change ledger, or nil when disabled.
func (a *Adapter) Ledger() *ledger.Ledger {
	return a.ledger
}

// State reports the outcome of the most recent call.
func (a *Adapter) State() State {
	return State(a.state.Load())
}

func (a *Adapter) finish(err error) error {
	if err != nil {
		a.state.Store(int32(StateError))
		return err
	}
	a.state.Store(int32(StateSuccess))
	return nil
}

type group struct {
	key     schema.GroupKey
	records []schema.Record
}

// groupRecords buckets records by group key, ordered by subject, year, month.
func groupRecords(records []schema.Record) []group {
	index := make(map[schema.GroupKey]int)
	var groups []group
	for _, r := range records {
		i, ok := index[r.Group]
		if !ok {
			i = len(groups)
			index[r.Group] = i
			groups = append(groups, group{key: r.Group})
		}
		groups[i].records = append(groups[i].records, r)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key.Less(groups[j].key) })
	return groups
}

// serialize makes a progress callback safe to call from concurrent work.
func serialize(onProgress ProgressFunc) ProgressFunc {
	if onProgress == nil {
		return func(string) {}
	}
	var mu stdsync.Mutex
	return func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		onProgress(msg)
	}
}

// SyncToRemote implements Syncer.
func (a *Adapter) SyncToRemote(ctx context.Context, onProgress ProgressFunc) error {
	a.state.Store(int32(StateRunning))
	report := serialize(onProgress)

	records, err := a.model.LoadAll(ctx)
	if err != nil {
		return a.finish(a.pushError("load local records", err))
	}
	if len(records) == 0 {
		report(fmt.Sprintf("No local %s records to sync", a.codec.Name))
		return a.finish(nil)
	}

	groups := groupRecords(records)
	total := len(groups)
	var done atomic.Int32

	a.logger.WithFields(logrus.Fields{"records": len(records), "documents": total}).Info("pushing to remote store")

	err = batch.Process(ctx, groups, a.batchSize, func(ctx context.Context, g group) error {
		if err := a.pushGroup(ctx, g); err != nil {
			return err
		}
		report(fmt.Sprintf("Synced %s (%d/%d)", g.key, done.Add(1), total))
		return nil
	}, func(msg string) { report(msg) })
	if err != nil {
		return a.finish(fmt.Errorf("failed to sync %s to remote store: %w", a.codec.Name, err))
	}

	return a.finish(nil)
}

func (a *Adapter) pushError(phase string, err error) error {
	return fmt.Errorf("failed to sync %s to remote store: %s: %w", a.codec.Name, phase, err)
}

func (a *Adapter) pushGroup(ctx context.Context, g group) error {
	id := g.key.DocID()

	existing, found, err := a.store.GetDocument(ctx, a.codec.Collection, id)
	if err != nil {
		return fmt.Errorf("read %s: %w", id, err)
	}

	doc := schema.NewDocument(g.key)
	if found {
		doc, err = a.decodeRemote(existing)
		if err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
	}
	doc.Meta.SubjectID, doc.Meta.Year, doc.Meta.Month = g.key.SubjectID, g.key.Year, g.key.Month

	incoming := make(map[string]schema.Payload, len(g.records))
	for _, r := range g.records {
		incoming[r.Key] = a.codec.Normalize(r.Payload)
	}
	replaced := doc.Merge(incoming)
	changes := ledger.Diff(replaced, incoming)
	doc.Touch(a.now())

	if err := a.store.SetDocument(ctx, a.codec.Collection, id, a.encodeRemote(doc), false); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}

	if a.ledger != nil {
		a.ledger.AppendBackup(ctx, g.key, changes)
	}

	a.logger.WithFields(logrus.Fields{
		"subject": g.key.SubjectID,
		"year":    g.key.Year,
		"month":   g.key.Month,
		"records": len(g.records),
		"changes": len(changes),
	}).Debug("pushed document")
	return nil
}

// encodeRemote renders doc in remote form. Top-level fields the codec does
// not know about were kept in remote form by decodeRemote and are written
// back as they are.
func (a *Adapter) encodeRemote(doc *schema.Document) map[string]any {
	out := make(map[string]any, len(doc.Extra)+2)
	for k, v := range doc.Extra {
		out[k] = v
	}

	meta := map[string]any{
		"subjectId":    doc.Meta.SubjectID,
		"lastModified": docstore.TimestampOf(doc.Meta.LastModified),
	}
	if doc.Meta.Group().IsMonthly() {
		meta["year"] = doc.Meta.Year
		meta["month"] = doc.Meta.Month
	}
	out["meta"] = meta

	records := make(map[string]any, len(doc.Records))
	for k, p := range doc.Records {
		records[k] = a.codec.ToRemote(p)
	}
	out[a.codec.RecordsField] = records

	return out
}

// decodeRemote parses a remote document into local form.
func (a *Adapter) decodeRemote(m map[string]any) (*schema.Document, error) {
	shallow := make(map[string]any, len(m))
	for k, v := range m {
		shallow[k] = v
	}
	if meta, ok := m["meta"].(map[string]any); ok {
		shallow["meta"] = transform.Converter{}.FromRemote(meta)
	}

	doc, err := schema.DecodeDocument(shallow, a.codec.RecordsField)
	if err != nil {
		return nil, err
	}
	for k, p := range doc.Records {
		doc.Records[k] = a.codec.FromRemote(p)
	}
	return doc, nil
}

// SyncFromRemote implements Syncer.
func (a *Adapter) SyncFromRemote(ctx context.Context, onProgress ProgressFunc) error {
	a.state.Store(int32(StateRunning))
	report := serialize(onProgress)

	snaps, err := a.store.ListDocuments(ctx, a.codec.Collection)
	if err != nil {
		return a.finish(a.pullError("list documents", err))
	}
	if len(snaps) == 0 {
		report(fmt.Sprintf("No %s data found in remote store", a.codec.Name))
		return a.finish(nil)
	}

	var records []schema.Record
	for _, snap := range snaps {
		doc, err := a.decodeRemote(snap.Data)
		if err != nil {
			return a.finish(a.pullError("decode "+snap.ID, err))
		}

		key := doc.Meta.Group()
		if key.SubjectID == "" {
			if key, err = schema.ParseDocID(snap.ID); err != nil {
				return a.finish(a.pullError("decode "+snap.ID, err))
			}
		}
		if err := key.Validate(); err != nil {
			return a.finish(a.pullError("decode "+snap.ID, err))
		}

		for _, k := range doc.Keys() {
			records = append(records, schema.Record{Group: key, Key: k, Payload: doc.Records[k]})
		}
	}

	groups := groupRecords(records)
	total := len(groups)

	a.logger.WithFields(logrus.Fields{"records": len(records), "documents": total}).Info("pulling from remote store")

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return a.finish(a.pullError("cancelled", err))
		}
		if err := a.model.SaveOrUpdate(ctx, g.key, g.records); err != nil {
			return a.finish(a.pullError("save "+g.key.String(), err))
		}
		report(fmt.Sprintf("Saved %s (%d/%d)", g.key, i+1, total))
	}

	return a.finish(nil)
}

func (a *Adapter) pullError(phase string, err error) error {
	return fmt.Errorf("failed to sync %s from remote store: %s: %w", a.codec.Name, phase, err)
}

// DeleteRemoteRecords removes record keys from a remote document with a
// merge write. Deleting from a missing document is a no-op.
func (a *Adapter) DeleteRemoteRecords(ctx context.Context, key schema.GroupKey, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	id := key.DocID()

	existing, found, err := a.store.GetDocument(ctx, a.codec.Collection, id)
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", a.codec.Collection, id, err)
	}
	if !found {
		return nil
	}
	doc, err := a.decodeRemote(existing)
	if err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", a.codec.Collection, id, err)
	}
	doc.Touch(a.now())

	deletes := make(map[string]any, len(keys))
	for _, k := range keys {
		deletes[k] = docstore.DeleteField
	}
	update := map[string]any{
		"meta":               map[string]any{"lastModified": docstore.TimestampOf(doc.Meta.LastModified)},
		a.codec.RecordsField: deletes,
	}
	if err := a.store.SetDocument(ctx, a.codec.Collection, id, update, true); err != nil {
		return fmt.Errorf("failed to delete records from %s/%s: %w", a.codec.Collection, id, err)
	}
	return nil
}
