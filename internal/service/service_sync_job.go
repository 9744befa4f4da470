package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/workers"
)

type syncJob struct {
	syncService SyncService
	runner      *workers.PairRunner
	pairs       map[string]Pair
	names       []string

	// pending holds pairs requested through Trigger; wake signals the loop.
	pendingMu sync.Mutex
	pending   map[string]struct{}
	wake      chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *logger.Logger
}

// NewSyncJob creates a syncJob that runs pairs through runner on a ticker
// and on demand. The job is idle until Start is called.
func NewSyncJob(syncService SyncService, pairs []Pair, runner *workers.PairRunner, log *logger.Logger) SyncJob {
	j := &syncJob{
		syncService: syncService,
		runner:      runner,
		pairs:       make(map[string]Pair, len(pairs)),
		pending:     make(map[string]struct{}),
		wake:        make(chan struct{}, 1),
		logger:      log,
	}
	for _, p := range pairs {
		j.pairs[p.Name] = p
		j.names = append(j.names, p.Name)
	}
	sort.Strings(j.names)
	return j
}

// Start implements SyncJob. It stops any previously running job, then
// launches a background goroutine that runs every pair immediately and then
// every interval, plus the pairs requested through Trigger. If interval is
// zero or negative it defaults to 5 minutes. The goroutine exits when ctx is
// cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		j.run(jobCtx, j.names)
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.run(jobCtx, j.names)
			case <-j.wake:
				j.run(jobCtx, j.takePending())
			}
		}
	}()
}

// Trigger implements SyncJob. Requests for a pair that is already pending
// are merged.
func (j *syncJob) Trigger(name string) error {
	if _, ok := j.pairs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPair, name)
	}

	j.pendingMu.Lock()
	j.pending[name] = struct{}{}
	j.pendingMu.Unlock()

	select {
	case j.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pairs implements SyncJob.
func (j *syncJob) Pairs() []string {
	return append([]string(nil), j.names...)
}

// Stop implements SyncJob. It cancels the background goroutine's context
// and blocks until the goroutine has fully exited. Safe to call when the job
// is not running (no-op in that case).
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

func (j *syncJob) takePending() []string {
	j.pendingMu.Lock()
	defer j.pendingMu.Unlock()

	names := make([]string, 0, len(j.pending))
	for name := range j.pending {
		names = append(names, name)
		delete(j.pending, name)
	}
	sort.Strings(names)
	return names
}

// run syncs names. Errors are logged by the runner and never stop the job.
func (j *syncJob) run(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	_ = j.runner.RunAll(ctx, names, func(ctx context.Context, name string) error {
		_, err := j.syncService.SyncPair(ctx, j.pairs[name])
		return err
	})
}
