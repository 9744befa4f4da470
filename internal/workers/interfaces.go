// Package workers provides the long-running and fan-out primitives of the
// daemon: the Worker abstraction and the Workers aggregate that runs them
// side by side, the PairRunner that synchronizes many pairs with bounded
// parallelism, and the Watcher that turns filesystem events into debounced
// callbacks.
package workers

import "context"

// Worker is the interface that must be implemented by any background worker.
// Run blocks until ctx is cancelled or the worker fails.
//
// Example implementation:
//
//	type MyWorker struct{}
//
//	func (w *MyWorker) Run(ctx context.Context) error {
//	    <-ctx.Done()
//	    return nil
//	}
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc adapts an ordinary function to the [Worker] interface.
type WorkerFunc func(ctx context.Context) error

// Run implements [Worker].
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}
