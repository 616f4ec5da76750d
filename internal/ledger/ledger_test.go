package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

var jan = schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 1}

// fixedClock returns a clock that advances one minute per call.
func fixedClock() func() time.Time {
	t := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

type failingStorage struct{}

func (failingStorage) Load(context.Context, schema.GroupKey) (*Document, error) {
	return nil, errors.New("store unavailable")
}
func (failingStorage) Save(context.Context, schema.GroupKey, *Document) error { return nil }
func (failingStorage) List(context.Context) ([]*Document, error)              { return nil, nil }

func TestDiff(t *testing.T) {
	prior := map[string]schema.Payload{
		"1": {"timeIn": "09:00", "timeOut": "17:00"},
		"2": {"timeIn": "09:00", "timeOut": "17:00"},
	}
	next := map[string]schema.Payload{
		"1": {"timeIn": "09:00", "timeOut": "17:00"},
		"2": {"timeIn": "08:30", "timeOut": "17:00", "note": "early"},
		"3": {"timeIn": "09:00"},
	}

	changes := Diff(prior, next)
	assert.Equal(t, []Change{
		{Day: "2", Field: "note", OldValue: nil, NewValue: "early"},
		{Day: "2", Field: "timeIn", OldValue: "09:00", NewValue: "08:30"},
	}, changes)
}

func TestDiff_NumbersCompareByValue(t *testing.T) {
	prior := map[string]schema.Payload{"a": {"amount": 100}}
	next := map[string]schema.Payload{"a": {"amount": 100.0}}
	assert.Empty(t, Diff(prior, next))
}

func TestDiff_NestedNumbersCompareByValue(t *testing.T) {
	prior := map[string]schema.Payload{"l1": {
		"deductions": map[string]any{"d": map[string]any{"amount": 10}},
		"history":    []any{1, map[string]any{"n": int64(2)}},
	}}
	next := map[string]schema.Payload{"l1": {
		"deductions": map[string]any{"d": map[string]any{"amount": 10.0}},
		"history":    []any{1.0, map[string]any{"n": 2.0}},
	}}
	assert.Empty(t, Diff(prior, next))

	next["l1"]["deductions"] = map[string]any{"d": map[string]any{"amount": 12.5}}
	changes := Diff(prior, next)
	require.Len(t, changes, 1)
	assert.Equal(t, "deductions", changes[0].Field)
}

func TestDiff_Ordering(t *testing.T) {
	prior := map[string]schema.Payload{"10": {"x": 1.0}, "2": {"x": 1.0}}
	next := map[string]schema.Payload{"10": {"x": 2.0}, "2": {"x": 2.0}}
	changes := Diff(prior, next)
	require.Len(t, changes, 2)
	assert.Equal(t, "2", changes[0].Day)
	assert.Equal(t, "10", changes[1].Day)
}

func TestAppendBackup_Remote(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	l := New(NewRemoteStore(store, entity.Attendance), &Options{Now: fixedClock()})

	l.AppendBackup(ctx, jan, nil)
	assert.Equal(t, 0, store.Count("attendances_backups"), "empty changes create nothing")

	first := []Change{{Day: "1", Field: "timeIn", OldValue: "09:00", NewValue: "08:30"}}
	second := []Change{{Day: "1", Field: "timeOut", OldValue: "17:00", NewValue: "18:00"}}
	l.AppendBackup(ctx, jan, first)
	l.AppendBackup(ctx, jan, second)

	raw, found, err := store.GetDocument(ctx, "attendances_backups", "EMP001_2024_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "EMP001", raw["subjectId"])

	doc, err := l.History(ctx, jan)
	require.NoError(t, err)
	require.Len(t, doc.Backups, 2)
	assert.Equal(t, first, doc.Backups[0].Changes)
	assert.Equal(t, second, doc.Backups[1].Changes)
	assert.True(t, doc.Backups[0].Timestamp.Before(doc.Backups[1].Timestamp))
}

func TestAppendBackup_SwallowsErrors(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	l := New(failingStorage{}, &Options{Logger: logger})

	l.AppendBackup(context.Background(), jan, []Change{{Day: "1", Field: "timeIn"}})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to append backup", hook.LastEntry().Message)

	err := l.Append(context.Background(), jan, []Change{{Day: "1", Field: "timeIn"}})
	assert.Error(t, err)
}

func TestAppend_MaxEntries(t *testing.T) {
	ctx := context.Background()
	l := New(NewRemoteStore(docstore.NewMemoryStore(), entity.Loan), &Options{MaxEntries: 2, Now: fixedClock()})

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, l.Append(ctx, jan, []Change{{Day: "L1", Field: "status", NewValue: v}}))
	}

	doc, err := l.History(ctx, jan)
	require.NoError(t, err)
	require.Len(t, doc.Backups, 2)
	assert.Equal(t, "b", doc.Backups[0].Changes[0].NewValue)
	assert.Equal(t, "c", doc.Backups[1].Changes[0].NewValue)
}

func TestFileStore_RoundTripAndPrune(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs := NewFileStore(root, entity.Attendance)
	l := New(fs, &Options{Now: fixedClock()})

	feb := schema.GroupKey{SubjectID: "EMP002", Year: 2024, Month: 2}
	require.NoError(t, l.Append(ctx, jan, []Change{{Day: "1", Field: "timeIn", OldValue: "09:00", NewValue: "10:00"}}))
	require.NoError(t, l.Append(ctx, jan, []Change{{Day: "2", Field: "timeIn", OldValue: "09:00", NewValue: "10:00"}}))
	require.NoError(t, l.Append(ctx, feb, []Change{{Day: "3", Field: "timeOut", OldValue: 1.0, NewValue: 2.0}}))

	assert.FileExists(t, fs.Path(jan))
	assert.Contains(t, fs.Path(jan), "2024_1_attendance_backup.json")

	docs, err := fs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// Entries were stamped 08:01, 08:02 and 08:03.
	cutoff := time.Date(2024, 2, 1, 8, 2, 30, 0, time.UTC)
	removed, err := l.Prune(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	doc, err := l.History(ctx, jan)
	require.NoError(t, err)
	assert.Empty(t, doc.Backups)

	doc, err = l.History(ctx, feb)
	require.NoError(t, err)
	require.Len(t, doc.Backups, 1)
	assert.Equal(t, 2.0, doc.Backups[0].Changes[0].NewValue)
}

func TestFileStore_MissingAreaIsEmpty(t *testing.T) {
	fs := NewFileStore(t.TempDir(), entity.Role)
	docs, err := fs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	doc, err := fs.Load(context.Background(), schema.GroupKey{SubjectID: "admin"})
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Contains(t, fs.Path(schema.GroupKey{SubjectID: "admin"}), "admin_backup.json")
}
