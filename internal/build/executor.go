package build

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor runs one independent task per item with a bounded number of
// workers. Tasks share no mutable state; each writes only its own result
// slot. The first failing task cancels the context seen by the others and
// its error is returned once every started task has returned.
type Executor struct {
	workers int
}

// NewExecutor constructs an Executor with a given worker count (<=0 => NumCPU).
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{workers: workers}
}

// Workers returns the concurrency limit.
func (e *Executor) Workers() int { return e.workers }

// Run calls task(ctx, i) for every i in [0, n) and waits for all of them.
func (e *Executor) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
