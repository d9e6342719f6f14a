package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Sweep runs fn for every index in [0, n) with at most limit runs in flight.
// A limit <= 0 uses GOMAXPROCS. The first error cancels the remaining runs.
//
// Each call of fn must build its own Instance and integrator; neither is
// safe to share between goroutines.
func Sweep(ctx context.Context, n, limit int, fn func(ctx context.Context, idx int) error) error {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, idx)
		})
	}

	return g.Wait()
}
