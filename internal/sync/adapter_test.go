package sync

import (
	"context"
	"errors"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ledger"
	"github.com/sweldo/sweldo-sync/internal/localstore"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

var jan = schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 1}

// progressLog collects progress lines.
type progressLog struct {
	mu    stdsync.Mutex
	lines []string
}

func (p *progressLog) add(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, msg)
}

func (p *progressLog) contains(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// memModel is an in-memory LocalModel.
type memModel struct {
	mu      stdsync.Mutex
	records []schema.Record
	saves   int
	loadErr error
	saveErr error
}

func (m *memModel) LoadAll(ctx context.Context) ([]schema.Record, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Record(nil), m.records...), nil
}

func (m *memModel) SaveOrUpdate(ctx context.Context, group schema.GroupKey, records []schema.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.records = append(m.records, records...)
	return nil
}

// flakyStore fails every call that touches one collection.
type flakyStore struct {
	docstore.Store
	failing string
}

func (f *flakyStore) GetDocument(ctx context.Context, col, id string) (map[string]any, bool, error) {
	if col == f.failing {
		return nil, false, errors.New("unavailable")
	}
	return f.Store.GetDocument(ctx, col, id)
}

func (f *flakyStore) SetDocument(ctx context.Context, col, id string, data map[string]any, merge bool) error {
	if col == f.failing {
		return errors.New("unavailable")
	}
	return f.Store.SetDocument(ctx, col, id, data, merge)
}

func attendanceRecord(key schema.GroupKey, day, timeIn, timeOut string) schema.Record {
	return schema.Record{Group: key, Key: day, Payload: schema.Payload{"timeIn": timeIn, "timeOut": timeOut}}
}

func TestSyncToRemote_AttendanceScenario(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	a := New(entity.Attendance, model, store, nil)

	var progress progressLog
	require.NoError(t, a.SyncToRemote(ctx, progress.add))
	assert.Equal(t, StateSuccess, a.State())

	doc, found, err := store.GetDocument(ctx, "attendances", "EMP001_2024_1")
	require.NoError(t, err)
	require.True(t, found)

	days := doc["days"].(map[string]any)
	assert.Equal(t, map[string]any{"timeIn": "09:00", "timeOut": "17:00", "schedule": nil}, days["1"])

	meta := doc["meta"].(map[string]any)
	assert.Equal(t, "EMP001", meta["subjectId"])
	assert.IsType(t, docstore.Timestamp{}, meta["lastModified"])

	assert.Equal(t, 1, progress.contains("Synced EMP001 2024-1 (1/1)"))
	assert.Equal(t, 1, progress.contains("Processed batch 1 of 1"))
}

func TestSyncToRemote_NoLocalRecords(t *testing.T) {
	store := docstore.NewMemoryStore()
	a := New(entity.Loan, &memModel{}, store, nil)

	var progress progressLog
	require.NoError(t, a.SyncToRemote(context.Background(), progress.add))
	assert.Equal(t, []string{"No local loan records to sync"}, progress.lines)
	assert.Equal(t, 0, store.Count("loans"))
}

func TestSyncToRemote_MergesWithExisting(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.SetDocument(ctx, "attendances", "EMP001_2024_1", map[string]any{
		"meta":   map[string]any{"subjectId": "EMP001", "year": 2024, "month": 1},
		"days":   map[string]any{"2": map[string]any{"timeIn": "07:00", "timeOut": "15:00", "schedule": nil}},
		"source": "web",
	}, false))

	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	require.NoError(t, New(entity.Attendance, model, store, nil).SyncToRemote(ctx, nil))

	doc, _, err := store.GetDocument(ctx, "attendances", "EMP001_2024_1")
	require.NoError(t, err)
	days := doc["days"].(map[string]any)
	assert.Len(t, days, 2, "remote-only records survive a push")
	assert.Equal(t, "web", doc["source"], "unknown top-level fields survive a push")
}

func TestSyncToRemote_LedgerMonotonicity(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	a := New(entity.Attendance, model, store, nil)

	require.NoError(t, a.SyncToRemote(ctx, nil))
	require.NoError(t, a.SyncToRemote(ctx, nil))

	hist, err := a.Ledger().History(ctx, jan)
	require.NoError(t, err)
	assert.Nil(t, hist, "pushing unchanged records appends nothing")

	model.records = []schema.Record{attendanceRecord(jan, "1", "09:00", "18:00")}
	require.NoError(t, a.SyncToRemote(ctx, nil))

	hist, err = a.Ledger().History(ctx, jan)
	require.NoError(t, err)
	require.Len(t, hist.Backups, 1)
	assert.Equal(t, []ledger.Change{{Day: "1", Field: "timeOut", OldValue: "17:00", NewValue: "18:00"}}, hist.Backups[0].Changes)
}

func TestSyncToRemote_LastModifiedMonotonic(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	fixed := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	a := New(entity.Attendance, model, store, &Options{Now: func() time.Time { return fixed }})

	lastModified := func() time.Time {
		doc, _, err := store.GetDocument(ctx, "attendances", "EMP001_2024_1")
		require.NoError(t, err)
		return doc["meta"].(map[string]any)["lastModified"].(docstore.Timestamp).Time()
	}

	require.NoError(t, a.SyncToRemote(ctx, nil))
	first := lastModified()
	require.NoError(t, a.SyncToRemote(ctx, nil))
	assert.True(t, lastModified().After(first))
}

func TestSyncToRemote_LedgerFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemoryStore()
	store := &flakyStore{Store: mem, failing: "attendances_backups"}
	logger, hook := logtest.NewNullLogger()

	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	a := New(entity.Attendance, model, store, &Options{Logger: logger})
	require.NoError(t, a.SyncToRemote(ctx, nil))

	model.records = []schema.Record{attendanceRecord(jan, "1", "10:00", "17:00")}
	require.NoError(t, a.SyncToRemote(ctx, nil), "a ledger failure must not fail the push")

	doc, _, err := mem.GetDocument(ctx, "attendances", "EMP001_2024_1")
	require.NoError(t, err)
	assert.Equal(t, "10:00", doc["days"].(map[string]any)["1"].(map[string]any)["timeIn"])
	warned := false
	for _, e := range hook.AllEntries() {
		if e.Message == "failed to append backup" {
			warned = true
		}
	}
	assert.True(t, warned, "ledger failure should be logged")
}

func TestSyncToRemote_Errors(t *testing.T) {
	ctx := context.Background()

	a := New(entity.Attendance, &memModel{loadErr: errors.New("disk gone")}, docstore.NewMemoryStore(), nil)
	err := a.SyncToRemote(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, "failed to sync attendance to remote store: load local records: disk gone", err.Error())
	assert.Equal(t, StateError, a.State())

	store := &flakyStore{Store: docstore.NewMemoryStore(), failing: "attendances"}
	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	err = New(entity.Attendance, model, store, nil).SyncToRemote(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sync attendance to remote store: read EMP001_2024_1")
}

func TestSyncToRemote_InvalidBatchSize(t *testing.T) {
	model := &memModel{records: []schema.Record{attendanceRecord(jan, "1", "09:00", "17:00")}}
	a := New(entity.Attendance, model, docstore.NewMemoryStore(), &Options{BatchSize: -1})
	assert.Error(t, a.SyncToRemote(context.Background(), nil))
}

func TestSyncFromRemote_Empty(t *testing.T) {
	model := &memModel{}
	a := New(entity.Attendance, model, docstore.NewMemoryStore(), nil)

	var progress progressLog
	require.NoError(t, a.SyncFromRemote(context.Background(), progress.add))
	assert.Equal(t, []string{"No attendance data found in remote store"}, progress.lines)
	assert.Equal(t, 0, model.saves)
}

func TestSyncFromRemote_Malformed(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.SetDocument(ctx, "attendances", "EMP001_2024_1", map[string]any{
		"meta": map[string]any{"subjectId": "EMP001", "year": 2024, "month": 1},
		"days": "not a map",
	}, false))

	err := New(entity.Attendance, &memModel{}, store, nil).SyncFromRemote(ctx, nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to sync attendance from remote store: decode EMP001_2024_1"))
}

func TestSyncFromRemote_FailsFast(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	source := &memModel{records: []schema.Record{
		attendanceRecord(jan, "1", "09:00", "17:00"),
		attendanceRecord(schema.GroupKey{SubjectID: "EMP002", Year: 2024, Month: 1}, "1", "09:00", "17:00"),
	}}
	require.NoError(t, New(entity.Attendance, source, store, nil).SyncToRemote(ctx, nil))

	target := &memModel{saveErr: errors.New("read-only")}
	a := New(entity.Attendance, target, store, nil)
	err := a.SyncFromRemote(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sync attendance from remote store: save EMP001 2024-1: read-only")
	assert.Equal(t, 0, target.saves)
}

func TestPushPullSymmetry(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	src := localstore.New(srcRoot, entity.Loan, nil)
	feb := schema.GroupKey{SubjectID: "EMP002", Year: 2024, Month: 2}
	require.NoError(t, src.SaveOrUpdate(ctx, jan, []schema.Record{
		{Group: jan, Key: "L1", Payload: schema.Payload{"id": "L1", "employeeId": "EMP001", "date": "2024-01-05", "amount": 5000.0}},
		{Group: jan, Key: "L2", Payload: schema.Payload{"id": "L2", "employeeId": "EMP001", "date": "2024-01-20", "amount": 250.5, "deductions": map[string]any{"2024-02": 100.0}}},
	}))
	require.NoError(t, src.SaveOrUpdate(ctx, feb, []schema.Record{
		{Group: feb, Key: "L3", Payload: schema.Payload{"id": "L3", "employeeId": "EMP002", "date": "2024-02-01", "amount": 1000.0, "status": "Approved"}},
	}))

	var progress progressLog
	require.NoError(t, New(entity.Loan, src, store, &Options{BatchSize: 1}).SyncToRemote(ctx, progress.add))
	assert.Equal(t, 2, progress.contains("Processed batch"))

	dst := localstore.New(dstRoot, entity.Loan, nil)
	var pulled progressLog
	require.NoError(t, New(entity.Loan, dst, store, nil).SyncFromRemote(ctx, pulled.add))
	assert.Equal(t, []string{"Saved EMP001 2024-1 (1/2)", "Saved EMP002 2024-2 (2/2)"}, pulled.lines)

	want, err := src.LoadAll(ctx)
	require.NoError(t, err)
	got, err := dst.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPushPullSymmetry_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := docstore.OpenSQLite(ctx, t.TempDir()+"/remote.db", nil)
	require.NoError(t, err)
	defer store.Close()

	src := &memModel{records: []schema.Record{
		{Group: schema.GroupKey{SubjectID: "admin"}, Key: "admin", Payload: schema.Payload{
			"id": "admin", "name": "Administrator", "permissions": []any{"payroll", "employees"},
			"createdAt": "2024-01-15T09:30:00Z",
		}},
	}}
	require.NoError(t, New(entity.Role, src, store, nil).SyncToRemote(ctx, nil))

	dst := &memModel{}
	require.NoError(t, New(entity.Role, dst, store, nil).SyncFromRemote(ctx, nil))
	require.Len(t, dst.records, 1)
	assert.Equal(t, schema.GroupKey{SubjectID: "admin"}, dst.records[0].Group)
	assert.Equal(t, entity.Role.Normalize(src.records[0].Payload), dst.records[0].Payload)
}

func TestSyncToRemote_NestedNumbersUnchanged_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := docstore.OpenSQLite(ctx, t.TempDir()+"/remote.db", nil)
	require.NoError(t, err)
	defer store.Close()

	loanKey := schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 3}
	model := &memModel{records: []schema.Record{{Group: loanKey, Key: "l1", Payload: schema.Payload{
		"id": "l1", "amount": 5000, "date": "2024-03-04",
		"deductions": map[string]any{"d": map[string]any{"amount": 10, "months": []any{1, 2}}},
	}}}}
	a := New(entity.Loan, model, store, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.SyncToRemote(ctx, nil))
	}

	hist, err := a.Ledger().History(ctx, loanKey)
	require.NoError(t, err)
	if hist != nil {
		assert.Empty(t, hist.Backups, "unchanged pushes must not append ledger entries")
	}

	p := entity.Loan.Normalize(model.records[0].Payload)
	deductions := p["deductions"].(map[string]any)
	assert.Equal(t, 10.0, deductions["d"].(map[string]any)["amount"])
}

func TestDeleteRemoteRecords(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	model := &memModel{records: []schema.Record{
		attendanceRecord(jan, "1", "09:00", "17:00"),
		attendanceRecord(jan, "2", "09:00", "17:00"),
	}}
	a := New(entity.Attendance, model, store, nil)
	require.NoError(t, a.SyncToRemote(ctx, nil))

	require.NoError(t, a.DeleteRemoteRecords(ctx, jan, []string{"1"}))

	doc, _, err := store.GetDocument(ctx, "attendances", "EMP001_2024_1")
	require.NoError(t, err)
	days := doc["days"].(map[string]any)
	assert.NotContains(t, days, "1")
	assert.Contains(t, days, "2")
	assert.Equal(t, "EMP001", doc["meta"].(map[string]any)["subjectId"])

	assert.NoError(t, a.DeleteRemoteRecords(ctx, schema.GroupKey{SubjectID: "X", Year: 2024, Month: 1}, []string{"1"}))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(t.TempDir(), docstore.NewMemoryStore(), nil)
	assert.Len(t, reg.All(), 12)

	a, err := reg.Get("loans")
	require.NoError(t, err)
	assert.Equal(t, "loan", a.Codec().Name)

	_, err = reg.Get("bonus")
	assert.ErrorIs(t, err, entity.ErrUnknownEntity)
}
