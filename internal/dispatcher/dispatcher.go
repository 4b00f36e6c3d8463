// Package dispatcher fans independent tasks out to a bounded set of
// goroutines.
package dispatcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
)

// Map calls fn for every item with at most size calls in flight and returns
// the results in input order. A task's outcome never stops its siblings;
// once ctx ends no further tasks start and Map reports the context error
// after in-flight tasks return.
func Map[T, R any](ctx context.Context, size int, items []T, fn func(ctx context.Context, item T) R) ([]R, error) {
	if size < 1 {
		size = 1
	}
	results := make([]R, len(items))
	var g errgroup.Group
	g.SetLimit(size)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("dispatch canceled: %w", err)
	}
	return results, nil
}
