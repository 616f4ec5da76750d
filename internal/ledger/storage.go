package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/schema"
	"github.com/sweldo/sweldo-sync/internal/transform"
)

// RemoteStore keeps ledgers in the entity's "<collection>_backups"
// collection, one document per data document id.
type RemoteStore struct {
	store      docstore.Store
	collection string
}

// NewRemoteStore returns ledger storage for codec in store.
func NewRemoteStore(store docstore.Store, codec *entity.Codec) *RemoteStore {
	return &RemoteStore{store: store, collection: codec.BackupCollection()}
}

// Collection returns the ledger collection name.
func (r *RemoteStore) Collection() string {
	return r.collection
}

// Load implements Storage.
func (r *RemoteStore) Load(ctx context.Context, key schema.GroupKey) (*Document, error) {
	data, found, err := r.store.GetDocument(ctx, r.collection, key.DocID())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return decode(data)
}

// Save implements Storage.
func (r *RemoteStore) Save(ctx context.Context, key schema.GroupKey, doc *Document) error {
	data := encode(doc, func(t time.Time) any { return docstore.TimestampOf(t) })
	return r.store.SetDocument(ctx, r.collection, key.DocID(), data, false)
}

// List implements Storage.
func (r *RemoteStore) List(ctx context.Context) ([]*Document, error) {
	snaps, err := r.store.ListDocuments(ctx, r.collection)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(snaps))
	for _, snap := range snaps {
		doc, err := decode(snap.Data)
		if err != nil {
			return nil, fmt.Errorf("ledger %s/%s: %w", r.collection, snap.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FileStore keeps ledgers next to the local data files:
// {area}/{subject}/{y}_{m}_{entity}_backup.json for monthly entities and
// {area}/{subject}_backup.json for single ones.
type FileStore struct {
	dir   string
	codec *entity.Codec
}

// NewFileStore returns ledger storage for codec under dbRoot.
func NewFileStore(dbRoot string, codec *entity.Codec) *FileStore {
	return &FileStore{dir: filepath.Join(dbRoot, codec.Area), codec: codec}
}

// Path returns the ledger file for key.
func (f *FileStore) Path(key schema.GroupKey) string {
	if f.codec.Grouping == entity.Single {
		return filepath.Join(f.dir, key.SubjectID+schema.BackupSuffix+".json")
	}
	return filepath.Join(f.dir, key.SubjectID, schema.BackupFileName(key.Year, key.Month, f.codec.FileEntity, ".json"))
}

// Load implements Storage.
func (f *FileStore) Load(ctx context.Context, key schema.GroupKey) (*Document, error) {
	return f.load(f.Path(key))
}

func (f *FileStore) load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger %s: %w", path, err)
	}
	return doc, nil
}

// Save implements Storage.
func (f *FileStore) Save(ctx context.Context, key schema.GroupKey, doc *Document) error {
	data := encode(doc, func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) })
	return schema.WriteJSONFile(f.Path(key), data)
}

// List implements Storage.
func (f *FileStore) List(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), schema.BackupSuffix+".json") {
			return nil
		}
		doc, err := f.load(path)
		if err != nil {
			return err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers in %s: %w", f.dir, err)
	}
	return docs, nil
}

func encode(doc *Document, stamp func(time.Time) any) map[string]any {
	backups := make([]any, len(doc.Backups))
	for i, e := range doc.Backups {
		changes := make([]any, len(e.Changes))
		for j, c := range e.Changes {
			changes[j] = map[string]any{
				"day":      c.Day,
				"field":    c.Field,
				"oldValue": transform.Converter{}.ToRemote(c.OldValue),
				"newValue": transform.Converter{}.ToRemote(c.NewValue),
			}
		}
		backups[i] = map[string]any{
			"timestamp": stamp(e.Timestamp),
			"changes":   changes,
		}
	}

	out := map[string]any{
		"subjectId": doc.SubjectID,
		"backups":   backups,
	}
	if doc.Year != 0 || doc.Month != 0 {
		out["year"] = doc.Year
		out["month"] = doc.Month
	}
	return out
}

func decode(m map[string]any) (*Document, error) {
	doc := &Document{}
	doc.SubjectID, _ = m["subjectId"].(string)
	doc.Year = toInt(m["year"])
	doc.Month = toInt(m["month"])

	raw, _ := m["backups"].([]any)
	for i, r := range raw {
		em, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("backup %d is %T, want object", i, r)
		}
		ts, err := parseTimestamp(em["timestamp"])
		if err != nil {
			return nil, fmt.Errorf("backup %d: %w", i, err)
		}
		entry := Entry{Timestamp: ts}

		changes, _ := em["changes"].([]any)
		for _, c := range changes {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			day, _ := cm["day"].(string)
			field, _ := cm["field"].(string)
			entry.Changes = append(entry.Changes, Change{
				Day:      day,
				Field:    field,
				OldValue: transform.Converter{}.FromRemote(cm["oldValue"]),
				NewValue: transform.Converter{}.FromRemote(cm["newValue"]),
			})
		}
		doc.Backups = append(doc.Backups, entry)
	}
	return doc, nil
}

func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case docstore.Timestamp:
		return t.Time(), nil
	case time.Time:
		return t.UTC(), nil
	case string:
		tm, ok := transform.ParseDate(t)
		if !ok {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
		}
		return tm.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp of type %T", v)
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	default:
		return 0
	}
}
