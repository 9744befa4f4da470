package workers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Workers runs a fixed set of workers side by side.
type Workers struct {
	workers []Worker
}

// NewWorkers returns an aggregate of ws. Nil workers are skipped.
func NewWorkers(ws ...Worker) *Workers {
	workers := make([]Worker, 0, len(ws))
	for _, w := range ws {
		if w != nil {
			workers = append(workers, w)
		}
	}
	return &Workers{workers: workers}
}

// Run starts every worker in its own goroutine and blocks until all of them
// have returned. The first worker error cancels the context of the others
// and is returned.
func (w *Workers) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range w.workers {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	return g.Wait()
}
