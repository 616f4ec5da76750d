package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_ProgressMessages(t *testing.T) {
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}

	var calls atomic.Int32
	var progress []string
	err := Process(context.Background(), items, 5, func(ctx context.Context, _ int) error {
		calls.Add(1)
		return nil
	}, func(msg string) {
		progress = append(progress, msg)
	})

	require.NoError(t, err)
	assert.Equal(t, int32(12), calls.Load())
	assert.Equal(t, []string{
		"Processed batch 1 of 3",
		"Processed batch 2 of 3",
		"Processed batch 3 of 3",
	}, progress)
}

func TestProcess_Empty(t *testing.T) {
	called := false
	err := Process(context.Background(), []string{}, 5, func(context.Context, string) error {
		called = true
		return nil
	}, func(string) { called = true })

	require.NoError(t, err)
	assert.False(t, called)
}

func TestProcess_InvalidBatchSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		err := Process(context.Background(), []int{1}, size, func(context.Context, int) error { return nil }, nil)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	}
}

func TestProcess_StopsAfterFailingChunk(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3, 4, 5, 6}

	var mu sync.Mutex
	seen := map[int]bool{}
	var progress []string

	err := Process(context.Background(), items, 3, func(ctx context.Context, i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		if i == 4 {
			return boom
		}
		return nil
	}, func(msg string) { progress = append(progress, msg) })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Processed batch 1 of 3"}, progress)
	assert.False(t, seen[6], "third chunk must not start")
}

func TestProcess_ConcurrentWithinChunk(t *testing.T) {
	// All three items must be in flight together or this deadlocks.
	var wg sync.WaitGroup
	wg.Add(3)
	err := Process(context.Background(), []int{1, 2, 3}, 3, func(ctx context.Context, _ int) error {
		wg.Done()
		wg.Wait()
		return nil
	}, nil)
	require.NoError(t, err)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Process(ctx, []int{1}, 1, func(context.Context, int) error { return nil }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(0, 5))
	assert.Equal(t, 1, Count(5, 5))
	assert.Equal(t, 3, Count(12, 5))
	assert.Equal(t, 0, Count(3, 0))
}
