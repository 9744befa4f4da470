package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"golang.org/x/sync/errgroup"
)

// PairRunner runs a function for many pairs with bounded parallelism. A
// failing pair never cancels the others.
type PairRunner struct {
	parallelism int
	logger      *logger.Logger
}

// NewPairRunner returns a runner that handles at most parallelism pairs at
// once. Values below one are treated as one.
func NewPairRunner(parallelism int, log *logger.Logger) *PairRunner {
	if parallelism < 1 {
		parallelism = 1
	}
	return &PairRunner{parallelism: parallelism, logger: log}
}

// RunAll calls fn once per name and waits for all calls to return. Names
// not yet started when ctx is cancelled are skipped. The returned error
// joins every pair error, each prefixed with its pair name.
func (r *PairRunner) RunAll(ctx context.Context, names []string, fn func(ctx context.Context, name string) error) error {
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(r.parallelism)

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			errs[i] = fmt.Errorf("pair %s: %w", name, err)
			continue
		}
		g.Go(func() error {
			if err := fn(ctx, name); err != nil {
				r.logger.Err(err).Str("func", "*PairRunner.RunAll").Str("pair", name).Msg("pair run failed")
				errs[i] = fmt.Errorf("pair %s: %w", name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
