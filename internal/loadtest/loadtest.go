// Package loadtest measures push throughput against a document store.
//
// It generates a synthetic attendance tree (employees × months, one record
// per working day), pushes it with a given batch size and reports the
// latency of every remote document write. Any docstore.Store works, so the
// same run can compare the SQLite, S3 and in-memory backends.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/localstore"
	"github.com/sweldo/sweldo-sync/internal/schema"
	esync "github.com/sweldo/sweldo-sync/internal/sync"
)

// TestTree is a generated local attendance database.
type TestTree struct {
	Root      string
	Subjects  []string
	Groups    []schema.GroupKey
	Records   int
	Employees int
	Months    int

	model *localstore.FileModel
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	P50        time.Duration // Median
	P95        time.Duration
	P99        time.Duration
	TotalCalls int
	Errors     int
	Durations  []time.Duration
}

// PushResult is the outcome of one timed push.
type PushResult struct {
	Writes     *LatencyStats
	Documents  int
	Records    int
	BatchSize  int
	Duration   time.Duration
	Throughput float64 // documents per second
}

// CreateTestTree writes employees × months attendance documents under root,
// starting at the month of start. Times are random but reproducible.
func CreateTestTree(ctx context.Context, root string, employees, months int, start time.Time) (*TestTree, error) {
	if employees <= 0 || months <= 0 {
		return nil, fmt.Errorf("employees and months must be positive (got %d, %d)", employees, months)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	model := localstore.New(root, entity.Attendance, &localstore.Options{Logger: logger, DisableLedger: true})

	tt := &TestTree{Root: root, Employees: employees, Months: months, model: model}
	rng := rand.New(rand.NewSource(42))
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)

	for e := 0; e < employees; e++ {
		subject := fmt.Sprintf("EMP%04d", e+1)
		tt.Subjects = append(tt.Subjects, subject)

		for m := 0; m < months; m++ {
			month := first.AddDate(0, m, 0)
			key := schema.GroupKey{SubjectID: subject, Year: month.Year(), Month: int(month.Month())}
			records := generateMonth(rng, key, month)
			if err := model.SaveOrUpdate(ctx, key, records); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", key, err)
			}
			tt.Groups = append(tt.Groups, key)
			tt.Records += len(records)
		}
	}

	return tt, nil
}

// generateMonth creates one attendance record per weekday of the month.
func generateMonth(rng *rand.Rand, key schema.GroupKey, month time.Time) []schema.Record {
	var records []schema.Record
	for d := month; d.Month() == month.Month(); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		in := 7*60 + 30 + rng.Intn(90) // 07:30 to 08:59
		out := in + 8*60 + 30 + rng.Intn(120)
		records = append(records, schema.Record{
			Group: key,
			Key:   fmt.Sprintf("%d", d.Day()),
			Payload: schema.Payload{
				"timeIn":  clock(in),
				"timeOut": clock(out),
			},
		})
	}
	return records
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Model returns the local model over the tree.
func (tt *TestTree) Model() *localstore.FileModel {
	return tt.model
}

// RunPush pushes the tree into store and times every document write.
func (tt *TestTree) RunPush(ctx context.Context, store docstore.Store, batchSize int) (*PushResult, error) {
	timed := &timedStore{Store: store}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	adapter := esync.New(entity.Attendance, tt.model, timed, &esync.Options{
		BatchSize:     batchSize,
		DisableLedger: true,
		Logger:        logger,
	})

	start := time.Now()
	err := adapter.SyncToRemote(ctx, nil)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	durations, errs := timed.results()
	if len(durations) == 0 {
		return nil, fmt.Errorf("no document writes were recorded")
	}
	stats := computeLatencyStats(durations)
	stats.Errors = errs

	res := &PushResult{
		Writes:    stats,
		Documents: len(tt.Groups),
		Records:   tt.Records,
		BatchSize: batchSize,
		Duration:  elapsed,
	}
	if elapsed > 0 {
		res.Throughput = float64(res.Documents) / elapsed.Seconds()
	}
	return res, nil
}

// VerifyPull pulls store into a fresh tree under root and checks that every
// generated record came back.
func (tt *TestTree) VerifyPull(ctx context.Context, store docstore.Store, root string) error {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fresh := localstore.New(root, entity.Attendance, &localstore.Options{Logger: logger, DisableLedger: true})
	adapter := esync.New(entity.Attendance, fresh, store, &esync.Options{DisableLedger: true, Logger: logger})
	if err := adapter.SyncFromRemote(ctx, nil); err != nil {
		return err
	}

	want, err := tt.model.LoadAll(ctx)
	if err != nil {
		return err
	}
	got, err := fresh.LoadAll(ctx)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return fmt.Errorf("pulled %d records, pushed %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Group != want[i].Group || got[i].Key != want[i].Key {
			return fmt.Errorf("record %d: pulled %s/%s, pushed %s/%s", i, got[i].Group, got[i].Key, want[i].Group, want[i].Key)
		}
		if got[i].Payload["timeIn"] != want[i].Payload["timeIn"] || got[i].Payload["timeOut"] != want[i].Payload["timeOut"] {
			return fmt.Errorf("record %s/%s differs after pull", want[i].Group, want[i].Key)
		}
	}
	return nil
}

// timedStore records the latency of every SetDocument call.
type timedStore struct {
	docstore.Store

	mu        sync.Mutex
	durations []time.Duration
	errors    int
}

func (s *timedStore) SetDocument(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	start := time.Now()
	err := s.Store.SetDocument(ctx, collection, id, data, merge)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.durations = append(s.durations, elapsed)
	if err != nil {
		s.errors++
	}
	s.mu.Unlock()
	return err
}

func (s *timedStore) results() ([]time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.durations...), s.errors
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       sum / time.Duration(len(durations)),
		P50:        sorted[len(sorted)*50/100],
		P95:        sorted[len(sorted)*95/100],
		P99:        sorted[len(sorted)*99/100],
		TotalCalls: len(durations),
		Durations:  sorted,
	}
}

// Print formats latency statistics.
func (s *LatencyStats) Print(w io.Writer) {
	fmt.Fprintf(w, "Write Latency:\n")
	fmt.Fprintf(w, "  Total Writes:  %d\n", s.TotalCalls)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// Print formats the whole result.
func (r *PushResult) Print(w io.Writer) {
	fmt.Fprintf(w, "Pushed %d documents (%d records) with batch size %d in %v (%.1f docs/s)\n",
		r.Documents, r.Records, r.BatchSize, r.Duration.Round(time.Millisecond), r.Throughput)
	r.Writes.Print(w)
}
