package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/internal/item"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/models"
	"golang.org/x/sync/errgroup"
)

// SyncOptions tunes the execution of a run.
type SyncOptions struct {
	// Concurrency bounds the storage writes in flight per pair.
	Concurrency int
	// BatchSize is the number of status changes per commit.
	BatchSize int
}

// syncService is the concrete implementation of SyncService.
type syncService struct {
	statusStore store.StatusStore
	locker      store.PairLocker
	planner     SyncPlanner
	applier     *changeApplier
	ids         IDGenerator
	observer    RunObserver
	concurrency int
	now         func() time.Time

	logger *logger.Logger
}

// NewSyncService constructs a SyncService. observer may be nil.
func NewSyncService(
	statusStore store.StatusStore,
	locker store.PairLocker,
	ids IDGenerator,
	observer RunObserver,
	opts SyncOptions,
	log *logger.Logger,
) SyncService {
	applier := newChangeApplier(statusStore, opts.Concurrency, opts.BatchSize)
	return &syncService{
		statusStore: statusStore,
		locker:      locker,
		planner:     NewSyncPlanner(),
		applier:     applier,
		ids:         ids,
		observer:    observer,
		concurrency: applier.concurrency,
		now:         time.Now,
		logger:      log,
	}
}

// SyncPair implements SyncService.
func (s *syncService) SyncPair(ctx context.Context, pair Pair) (models.RunSummary, error) {
	runID := s.ids.Generate()
	ctx, log := s.logger.WithRun(ctx, pair.Name, runID)

	report := &runReport{summary: models.RunSummary{
		RunID:     runID,
		PairID:    pair.Name,
		StartedAt: s.now().UTC(),
	}}

	summary, err := s.run(ctx, pair, report)
	if err != nil {
		log.Err(err).Str("func", "*syncService.SyncPair").Msg("sync run failed")
	} else {
		log.Info().
			Int("applied", summary.Applied()).
			Int("deferred", summary.ConflictsDeferred).
			Int("failed", len(summary.Failed)).
			Bool("cancelled", summary.Cancelled).
			Msg("sync run finished")
	}

	if s.observer != nil {
		s.observer.ObserveRun(summary, err)
	}
	return summary, err
}

func (s *syncService) run(ctx context.Context, pair Pair, report *runReport) (models.RunSummary, error) {
	unlock, err := s.locker.Lock(pair.Name)
	if err != nil {
		return s.finish(report), fmt.Errorf("lock pair %s: %w", pair.Name, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.FromContext(ctx).Err(err).Str("func", "*syncService.run").Msg("error releasing pair lock")
		}
	}()

	plan, err := s.buildPlan(ctx, pair)
	if err != nil {
		return s.finish(report), err
	}

	plan = s.resolve(ctx, pair, plan, report)
	s.applier.apply(ctx, pair, plan, report)

	summary := s.finish(report)
	if err = s.statusStore.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*syncService.run").Msg("error saving run summary")
	}
	return summary, nil
}

func (s *syncService) finish(report *runReport) models.RunSummary {
	report.mu.Lock()
	report.summary.FinishedAt = s.now().UTC()
	report.mu.Unlock()
	return report.result()
}

// Plan implements SyncService.
func (s *syncService) Plan(ctx context.Context, pair Pair) (models.SyncPlan, error) {
	ctx, _ = s.logger.WithRun(ctx, pair.Name, "dry-run")
	return s.buildPlan(ctx, pair)
}

// LastRun implements SyncService.
func (s *syncService) LastRun(ctx context.Context, pairID string) (models.RunSummary, error) {
	return s.statusStore.LastRun(ctx, pairID)
}

// buildPlan loads the records of the pair, lists both sides concurrently,
// plans, pairs items stored under different names and converges
// byte-identical conflicts.
func (s *syncService) buildPlan(ctx context.Context, pair Pair) (models.SyncPlan, error) {
	records, err := s.statusStore.Load(ctx, pair.Name)
	if err != nil {
		return models.SyncPlan{}, fmt.Errorf("%w: %w", ErrLoadingStatus, err)
	}

	var listingA, listingB []models.ItemRef
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if listingA, err = pair.A.List(gctx); err != nil {
			return fmt.Errorf("%w: side A: %w", ErrListing, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if listingB, err = pair.B.List(gctx); err != nil {
			return fmt.Errorf("%w: side B: %w", ErrListing, err)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return models.SyncPlan{}, err
	}

	plan, err := s.planner.BuildSyncPlan(ctx, pair.Name, records, listingA, listingB)
	if err != nil {
		return models.SyncPlan{}, err
	}

	plan = s.pairByIdent(ctx, pair, plan)
	return s.converge(ctx, pair, plan), nil
}

// pairByIdent fetches the record-less items listed on one side only and lets
// the planner pair those holding the same item under different names. It
// fetches nothing unless both sides have such items.
func (s *syncService) pairByIdent(ctx context.Context, pair Pair, plan models.SyncPlan) models.SyncPlan {
	var onlyA, onlyB []string
	for _, e := range plan.Entries {
		if e.Previous != nil {
			continue
		}
		switch {
		case e.PresentA && !e.PresentB:
			onlyA = append(onlyA, e.IdentityA)
		case e.PresentB && !e.PresentA:
			onlyB = append(onlyB, e.IdentityB)
		}
	}
	if len(onlyA) == 0 || len(onlyB) == 0 {
		return plan
	}

	identsA := s.fetchIdents(ctx, pair.A, onlyA)
	identsB := s.fetchIdents(ctx, pair.B, onlyB)
	return s.planner.PairByIdent(plan, identsA, identsB)
}

// fetchIdents maps identities to the ident of their content. Items that
// cannot be fetched are left out and stay unpaired.
func (s *syncService) fetchIdents(ctx context.Context, storage adapter.Storage, identities []string) map[string]string {
	var (
		mu     sync.Mutex
		idents = make(map[string]string, len(identities))
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, identity := range identities {
		g.Go(func() error {
			it, err := storage.Fetch(ctx, identity)
			if err != nil {
				logger.FromContext(ctx).Debug().Err(err).Str("identity", identity).Msg("cannot read item ident")
				return nil
			}
			mu.Lock()
			idents[identity] = item.Ident(it.Content)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return idents
}

// converge turns conflicts whose two sides hold byte-identical content into
// a status refresh. Entries whose content cannot be fetched stay conflicts.
func (s *syncService) converge(ctx context.Context, pair Pair, plan models.SyncPlan) models.SyncPlan {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range plan.Entries {
		e := &plan.Entries[i]
		if e.Action != models.Conflict || !e.PresentA || !e.PresentB {
			continue
		}
		g.Go(func() error {
			a, err := pair.A.Fetch(ctx, e.IdentityA)
			if err != nil {
				logger.FromContext(ctx).Debug().Err(err).Str("association_id", e.AssociationID).Msg("cannot compare conflict")
				return nil
			}
			b, err := pair.B.Fetch(ctx, e.IdentityB)
			if err != nil {
				logger.FromContext(ctx).Debug().Err(err).Str("association_id", e.AssociationID).Msg("cannot compare conflict")
				return nil
			}
			if bytes.Equal(a.Content, b.Content) {
				e.Action, e.Kind, e.Status = models.NoOp, "", models.StatusRefresh
			}
			return nil
		})
	}
	_ = g.Wait()

	return plan
}

// resolve asks the pair's resolver about every conflict. A resolver error
// fails the entry and leaves its record untouched.
func (s *syncService) resolve(ctx context.Context, pair Pair, plan models.SyncPlan, report *runReport) models.SyncPlan {
	resolver := pair.Resolver
	if resolver == nil {
		resolver = Defer
	}

	for i, e := range plan.Entries {
		if e.Action != models.Conflict {
			continue
		}
		r, err := resolver.Resolve(ctx, models.NewConflictInfo(pair.Name, e))
		if err != nil {
			logger.FromContext(ctx).Err(err).Str("func", "*syncService.resolve").Str("association_id", e.AssociationID).Msg("resolver failed")
			report.fail(e, models.ReasonResolver, err)
			plan.Entries[i].Action, plan.Entries[i].Status = models.NoOp, models.StatusKeep
			continue
		}
		plan.Entries[i] = resolveEntry(e, r)
	}
	return plan
}
