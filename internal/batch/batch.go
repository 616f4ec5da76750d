// Package batch runs work over a list in fixed-size chunks.
//
// Items inside a chunk run concurrently; chunks run one after another. The
// first failure cancels the rest of its chunk and no later chunk starts.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidBatchSize is returned when batchSize is not positive.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Process calls work once per item, batchSize items at a time, and reports
// "Processed batch K of M" through onProgress after each chunk completes.
// onProgress may be nil.
func Process[T any](ctx context.Context, items []T, batchSize int, work func(context.Context, T) error, onProgress func(string)) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, batchSize)
	}
	if len(items) == 0 {
		return nil
	}

	total := Count(len(items), batchSize)
	for k := 0; k < total; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := k * batchSize
		end := min(start+batchSize, len(items))

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:end] {
			g.Go(func() error {
				return work(gctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if onProgress != nil {
			onProgress(fmt.Sprintf("Processed batch %d of %d", k+1, total))
		}
	}

	return nil
}

// Count returns how many chunks n items split into.
func Count(n, batchSize int) int {
	if batchSize <= 0 || n <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}
