package loadtest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweldo/sweldo-sync/internal/batch"
	"github.com/sweldo/sweldo-sync/internal/docstore"
)

var jan2024 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestCreateTestTree(t *testing.T) {
	tt, err := CreateTestTree(context.Background(), t.TempDir(), 3, 2, jan2024)
	require.NoError(t, err)

	assert.Equal(t, []string{"EMP0001", "EMP0002", "EMP0003"}, tt.Subjects)
	require.Len(t, tt.Groups, 6)
	assert.Equal(t, 2024, tt.Groups[1].Year)
	assert.Equal(t, 2, tt.Groups[1].Month)

	// January 2024 has 23 weekdays, February 21.
	assert.Equal(t, 3*(23+21), tt.Records)

	records, err := tt.Model().LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, tt.Records)
	assert.Regexp(t, `^\d\d:\d\d$`, records[0].Payload["timeIn"])
}

func TestCreateTestTree_Invalid(t *testing.T) {
	_, err := CreateTestTree(context.Background(), t.TempDir(), 0, 1, jan2024)
	assert.Error(t, err)
}

func TestRunPush_Memory(t *testing.T) {
	ctx := context.Background()
	tt, err := CreateTestTree(ctx, t.TempDir(), 4, 3, jan2024)
	require.NoError(t, err)

	store := docstore.NewMemoryStore()
	res, err := tt.RunPush(ctx, store, 5)
	require.NoError(t, err)

	assert.Equal(t, 12, res.Documents)
	assert.Equal(t, 12, res.Writes.TotalCalls)
	assert.Equal(t, 0, res.Writes.Errors)
	assert.Equal(t, 12, store.Count("attendances"))
	assert.LessOrEqual(t, res.Writes.Min, res.Writes.P50)
	assert.LessOrEqual(t, res.Writes.P50, res.Writes.P99)
	assert.LessOrEqual(t, res.Writes.P99, res.Writes.Max)

	var out bytes.Buffer
	res.Print(&out)
	assert.Contains(t, out.String(), "Pushed 12 documents")
	assert.Contains(t, out.String(), "P95:")

	require.NoError(t, tt.VerifyPull(ctx, store, t.TempDir()))
}

func TestRunPush_SQLite(t *testing.T) {
	ctx := context.Background()
	tt, err := CreateTestTree(ctx, t.TempDir(), 2, 2, jan2024)
	require.NoError(t, err)

	store, err := docstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "remote.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	res, err := tt.RunPush(ctx, store, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Writes.TotalCalls)

	require.NoError(t, tt.VerifyPull(ctx, store, t.TempDir()))
}

func TestRunPush_InvalidBatchSize(t *testing.T) {
	ctx := context.Background()
	tt, err := CreateTestTree(ctx, t.TempDir(), 1, 1, jan2024)
	require.NoError(t, err)

	_, err = tt.RunPush(ctx, docstore.NewMemoryStore(), -1)
	assert.ErrorIs(t, err, batch.ErrInvalidBatchSize)
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	stats := computeLatencyStats(durations)
	assert.Equal(t, time.Millisecond, stats.Min)
	assert.Equal(t, 100*time.Millisecond, stats.Max)
	assert.Equal(t, 51*time.Millisecond, stats.P50)
	assert.Equal(t, 96*time.Millisecond, stats.P95)
	assert.Equal(t, 100*time.Millisecond, stats.P99)
	assert.Equal(t, 50500*time.Microsecond, stats.Mean)
	assert.Equal(t, 100, stats.TotalCalls)

	assert.Equal(t, &LatencyStats{}, computeLatencyStats(nil))
}
