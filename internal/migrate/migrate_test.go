package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ledger"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietOptions() *Options {
	logger, _ := logtest.NewNullLogger()
	return &Options{
		Logger: logger,
		Now:    func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) },
	}
}

type progress struct{ lines []string }

func (p *progress) add(msg string) { p.lines = append(p.lines, msg) }

func (p *progress) contains(sub string) bool {
	for _, l := range p.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func TestRun_MonthlyAttendance(t *testing.T) {
	root := t.TempDir()
	legacy := filepath.Join(root, "attendances", "EMP001", "2024_1_attendance.csv")
	content := "1,09:00,17:00,\n\n02,08:30,17:30,\"{\"\"start\"\":\"\"08:00\"\"}\"\n"
	writeFile(t, legacy, content)

	var p progress
	res, err := New(root, entity.Attendance, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)
	assert.Equal(t, 2, res.RecordsWritten)
	assert.Empty(t, res.Errors)
	assert.Contains(t, p.lines, "Migrated EMP001 2024-1 (2 records)")

	doc, err := schema.ReadDocumentFile(filepath.Join(filepath.Dir(legacy), "2024_1_attendance.json"), "days")
	require.NoError(t, err)
	assert.Equal(t, schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 1}, doc.Meta.Group())
	assert.Equal(t, []string{"1", "2"}, doc.Keys())
	assert.Equal(t, "09:00", doc.Records["1"]["timeIn"])
	assert.Nil(t, doc.Records["1"]["schedule"])
	assert.Equal(t, map[string]any{"start": "08:00"}, doc.Records["2"]["schedule"])

	// The legacy file is left alone.
	b, err := os.ReadFile(legacy)
	require.NoError(t, err)
	assert.Equal(t, content, string(b))
}

func TestRun_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "attendances", "EMP001", "2024_1_attendance.csv"), "1,09:00,17:00,\n")
	writeFile(t, filepath.Join(root, "attendances", "EMP002", "2024_2_attendance.csv"), "3,10:00,18:00,\n")

	m := New(root, entity.Attendance, quietOptions())
	first, err := m.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.FilesMigrated)

	target := filepath.Join(root, "attendances", "EMP001", "2024_1_attendance.json")
	before, err := os.Stat(target)
	require.NoError(t, err)

	var p progress
	second, err := m.Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesMigrated)
	assert.Equal(t, 0, second.RecordsWritten)
	assert.Equal(t, 2, second.FilesSkipped)
	assert.True(t, p.contains("already migrated"))

	after, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestRun_EmptyFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance.csv"), "\n  \n")

	var p progress
	res, err := New(root, entity.Attendance, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesMigrated)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Empty(t, res.Errors)
	assert.True(t, p.contains("empty file"))
	assert.NoFileExists(t, filepath.Join(dir, "2024_1_attendance.json"))
}

func TestRun_HeaderOnlyFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance.csv"), "day,timeIn,timeOut,schedule\n")

	var p progress
	res, err := New(root, entity.Attendance, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesMigrated)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Equal(t, 0, res.RecordsWritten)
	assert.True(t, p.contains("empty file"))
	assert.NoFileExists(t, filepath.Join(dir, "2024_1_attendance.json"))
}

func TestRun_SkipsBackupsAndBadNames(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance_backup.csv"), "2024-01-02T00:00:00Z,1,timeIn,09:00,08:00\n")
	writeFile(t, filepath.Join(dir, "old_attendance.csv"), "1,09:00,17:00,\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	var p progress
	res, err := New(root, entity.Attendance, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesMigrated)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.True(t, p.contains("unrecognised file name"))
	assert.NoFileExists(t, filepath.Join(dir, "2024_1_attendance_backup.json"))
}

func TestRun_ErrorInOneFileContinues(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance.csv"), "x,09:00,17:00,\n")
	writeFile(t, filepath.Join(dir, "2024_2_attendance.csv"), "1,09:00,17:00,\n")

	var p progress
	res, err := New(root, entity.Attendance, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "2024_1_attendance.csv")
	assert.True(t, p.contains("Error migrating"))
	assert.NoFileExists(t, filepath.Join(dir, "2024_1_attendance.json"))
	assert.FileExists(t, filepath.Join(dir, "2024_2_attendance.json"))
}

func TestRun_HeaderRowIgnored(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance.csv"), "day,timeIn,timeOut,schedule\n5,09:00,17:00,\n")

	res, err := New(root, entity.Attendance, quietOptions()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsWritten)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance.csv"), "1,09:00,17:00,\n")

	opts := quietOptions()
	opts.DryRun = true
	res, err := New(root, entity.Attendance, opts).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)
	assert.NoFileExists(t, filepath.Join(dir, "2024_1_attendance.json"))
}

func TestRun_MissingAreaIsNothingToDo(t *testing.T) {
	var p progress
	res, err := New(t.TempDir(), entity.Compensation, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Equal(t, []string{"No compensation data to migrate"}, p.lines)
}

func TestRun_PeriodMismatchOnlyWarns(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "leaves", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_2_leave.csv"), "L1,EMP001,2024-03-01,2024-03-02,Sick,Approved,flu\n")

	logger, hook := logtest.NewNullLogger()
	res, err := New(root, entity.Leave, &Options{Logger: logger}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "record period does not match file month", hook.LastEntry().Message)
}

func TestRun_SingleEntity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "employees", "employees.csv"),
		"id,name,position,dailyRate\n"+
			"EMP001,Juan Dela Cruz,Clerk,\"1,250.50\"\n"+
			"EMP002,Maria Clara,Cashier,600\n")
	// EMP002 was migrated before.
	writeFile(t, filepath.Join(root, "employees", "EMP002.json"), `{"meta":{"subjectId":"EMP002"},"profile":{}}`)

	var p progress
	res, err := New(root, entity.Employee, quietOptions()).Run(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.Contains(t, p.lines, "Migrated EMP001 (1 records)")

	doc, err := schema.ReadDocumentFile(filepath.Join(root, "employees", "EMP001.json"), "profile")
	require.NoError(t, err)
	profile := doc.Records["EMP001"]
	require.NotNil(t, profile)
	assert.Equal(t, "Juan Dela Cruz", profile["name"])
	assert.Equal(t, 1250.5, profile["dailyRate"])
	assert.Equal(t, "active", profile["status"])
}

func TestMigrateCSVToJSON_AllEntities(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "attendances", "EMP001", "2024_1_attendance.csv"), "1,09:00,17:00,\n")
	writeFile(t, filepath.Join(root, "missing_time", "EMP001", "2024_1_missing_time.csv"),
		",EMP001,Juan,3,timeIn,regular,\n")

	res, err := MigrateAll(context.Background(), root, quietOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesMigrated)

	doc, err := schema.ReadDocumentFile(filepath.Join(root, "missing_time", "EMP001", "2024_1_missing_time.json"), "logs")
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	for key, log := range doc.Records {
		// Rows without an id get a deterministic one.
		assert.Len(t, key, 36)
		assert.Equal(t, key, log["id"])
	}
}

func TestMigrateBackups(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance_backup.csv"),
		"2024-01-02T10:00:00Z,1,timeIn,09:00,08:00\n"+
			"2024-01-02T10:00:00Z,1,timeOut,17:00,18:00\n"+
			"2024-01-03T10:00:00Z,2,timeIn,,09:15\n")

	m := New(root, entity.Attendance, quietOptions())
	res, err := m.MigrateBackups(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)
	assert.Equal(t, 3, res.RecordsWritten)

	key := schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 1}
	doc, err := ledger.NewFileStore(root, entity.Attendance).Load(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Backups, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), doc.Backups[0].Timestamp)
	require.Len(t, doc.Backups[0].Changes, 2)
	assert.Equal(t, ledger.Change{Day: "1", Field: "timeOut", OldValue: "17:00", NewValue: "18:00"}, doc.Backups[0].Changes[1])
	assert.Equal(t, "09:15", doc.Backups[1].Changes[0].NewValue)

	again, err := m.MigrateBackups(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again.FilesMigrated)
	assert.Equal(t, 1, again.FilesSkipped)
}

func TestMigrateBackups_MergesIntoExistingLedger(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	dir := filepath.Join(root, "attendances", "EMP001")
	key := schema.GroupKey{SubjectID: "EMP001", Year: 2024, Month: 1}
	store := ledger.NewFileStore(root, entity.Attendance)

	// Written by a local save before the legacy backups were migrated.
	local := ledger.Entry{
		Timestamp: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
		Changes:   []ledger.Change{{Day: "3", Field: "timeIn", OldValue: "09:00", NewValue: "08:45"}},
	}
	require.NoError(t, store.Save(ctx, key, &ledger.Document{SubjectID: "EMP001", Year: 2024, Month: 1, Backups: []ledger.Entry{local}}))

	writeFile(t, filepath.Join(dir, "2024_1_attendance_backup.csv"),
		"timestamp,day,field,oldValue,newValue\n"+
			"2024-01-02T10:00:00Z,1,timeIn,09:00,08:00\n"+
			"2024-01-03T10:00:00Z,2,timeIn,,09:15\n")

	m := New(root, entity.Attendance, quietOptions())
	var p progress
	res, err := m.MigrateBackups(ctx, p.add)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMigrated)
	assert.Equal(t, 0, res.FilesSkipped)
	assert.Equal(t, 2, res.RecordsWritten)
	assert.True(t, p.contains("(2 entries)"))

	doc, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Backups, 3)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), doc.Backups[0].Timestamp)
	assert.Equal(t, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), doc.Backups[1].Timestamp)
	assert.Equal(t, local.Timestamp, doc.Backups[2].Timestamp)
	assert.Equal(t, "08:45", doc.Backups[2].Changes[0].NewValue)

	again, err := m.MigrateBackups(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again.FilesMigrated)
	assert.Equal(t, 1, again.FilesSkipped)

	doc, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Len(t, doc.Backups, 3)
}

func TestMigrateBackups_HeaderOnlyIsSkipped(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "attendances", "EMP001")
	writeFile(t, filepath.Join(dir, "2024_1_attendance_backup.csv"), "timestamp,day,field,oldValue,newValue\n")

	var p progress
	res, err := New(root, entity.Attendance, quietOptions()).MigrateBackups(context.Background(), p.add)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesMigrated)
	assert.Equal(t, 1, res.FilesSkipped)
	assert.True(t, p.contains("empty file"))
	assert.NoFileExists(t, filepath.Join(dir, "2024_1_attendance_backup.json"))
}

func TestParseBackupTimestamp(t *testing.T) {
	ts, err := parseBackupTimestamp("1704189600000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), ts)

	_, err = parseBackupTimestamp("yesterday")
	assert.Error(t, err)
}
