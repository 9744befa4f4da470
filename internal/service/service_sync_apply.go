package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/models"
	"golang.org/x/sync/errgroup"
)

// runReport collects the outcome of a run from concurrent workers.
type runReport struct {
	mu      sync.Mutex
	summary models.RunSummary
}

func (r *runReport) count(a models.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Count(a)
}

func (r *runReport) fail(e models.PlanEntry, reason models.FailureReason, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failed = append(r.summary.Failed, models.FailedEntry{
		AssociationID: e.AssociationID,
		Action:        e.Action,
		Reason:        reason,
		Error:         err.Error(),
	})
}

func (r *runReport) deferConflict(associationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.ConflictsDeferred++
	r.summary.Deferred = append(r.summary.Deferred, associationID)
}

func (r *runReport) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Cancelled = true
}

// result returns the summary with failed and deferred entries ordered by
// association id.
func (r *runReport) result() models.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Strings(r.summary.Deferred)
	sort.SliceStable(r.summary.Failed, func(i, j int) bool {
		return r.summary.Failed[i].AssociationID < r.summary.Failed[j].AssociationID
	})
	return r.summary
}

// committer is the only writer of a pair's status records during a run.
// Changes are staged into a lazily opened transaction that is committed
// every batchSize changes and once more by flush. Actions are counted only
// after their record change is committed.
type committer struct {
	statusStore store.StatusStore
	pairID      string
	batchSize   int
	report      *runReport
	logger      *logger.Logger

	mu      sync.Mutex
	tx      store.StatusTx
	pending []models.PlanEntry
}

func newCommitter(statusStore store.StatusStore, pairID string, batchSize int, report *runReport, log *logger.Logger) *committer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &committer{
		statusStore: statusStore,
		pairID:      pairID,
		batchSize:   batchSize,
		report:      report,
		logger:      log,
	}
}

// stage records rec as the new status of e. A nil rec deletes the record.
func (c *committer) stage(ctx context.Context, e models.PlanEntry, rec *models.StatusRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		tx, err := c.statusStore.Begin(context.WithoutCancel(ctx), c.pairID)
		if err != nil {
			c.logger.Err(err).Str("func", "*committer.stage").Msg("error beginning status transaction")
			c.failStatus(e, err)
			return
		}
		c.tx = tx
	}

	var err error
	if rec != nil {
		err = c.tx.Upsert(*rec)
	} else {
		err = c.tx.Delete(e.AssociationID)
	}
	if err != nil {
		c.logger.Err(err).Str("func", "*committer.stage").Str("association_id", e.AssociationID).Msg("error staging status change")
		c.abortLocked(err)
		c.failStatus(e, err)
		return
	}

	c.pending = append(c.pending, e)
	if len(c.pending) >= c.batchSize {
		c.commitLocked()
	}
}

// flush commits whatever is still staged.
func (c *committer) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commitLocked()
}

func (c *committer) commitLocked() {
	if c.tx == nil {
		return
	}
	tx, pending := c.tx, c.pending
	c.tx, c.pending = nil, nil

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		c.logger.Err(err).Str("func", "*committer.commitLocked").Int("changes", len(pending)).Msg("error committing status changes")
		for _, e := range pending {
			c.failStatus(e, err)
		}
		return
	}

	for _, e := range pending {
		c.report.count(e.Action)
	}
}

// abortLocked rolls back the open transaction after a failed statement and
// fails the changes already staged in it. Postgres rejects every later
// statement of a transaction with a failed one.
func (c *committer) abortLocked(err error) {
	tx, pending := c.tx, c.pending
	c.tx, c.pending = nil, nil

	if rbErr := tx.Rollback(); rbErr != nil {
		c.logger.Err(rbErr).Str("func", "*committer.abortLocked").Msg("error rolling back status transaction")
	}
	for _, e := range pending {
		c.failStatus(e, err)
	}
}

// failStatus reports a storage write whose status change was lost. Status
// only entries are not reported; the next run plans them again.
func (c *committer) failStatus(e models.PlanEntry, err error) {
	if e.Action.Mutates() {
		c.report.fail(e, models.ReasonStatus, fmt.Errorf("status not saved: %w", err))
	}
}

// changeApplier executes a resolved plan against the storages of a pair.
type changeApplier struct {
	statusStore store.StatusStore
	concurrency int
	batchSize   int
}

func newChangeApplier(statusStore store.StatusStore, concurrency, batchSize int) *changeApplier {
	if concurrency < 1 {
		concurrency = 1
	}
	return &changeApplier{statusStore: statusStore, concurrency: concurrency, batchSize: batchSize}
}

// apply runs every entry of plan. Storage writes run with bounded
// concurrency; a failed entry is reported and leaves its record untouched.
// Once ctx is cancelled no further entry is started, while started writes
// and the final commit complete on a context without cancellation.
func (a *changeApplier) apply(ctx context.Context, pair Pair, plan models.SyncPlan, report *runReport) {
	log := logger.FromContext(ctx)
	c := newCommitter(a.statusStore, pair.Name, a.batchSize, report, log)
	opCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for _, e := range plan.Entries {
		if ctx.Err() != nil {
			report.cancel()
			break
		}

		switch {
		case e.Action == models.Conflict:
			report.deferConflict(e.AssociationID)
		case e.Action == models.NoOp && e.Status == models.StatusRefresh:
			rec := e.CurrentRecord()
			c.stage(opCtx, e, &rec)
		case e.Action == models.NoOp && e.Status == models.StatusDrop:
			if e.Previous != nil {
				c.stage(opCtx, e, nil)
			}
		case e.Action == models.NoOp:
		default:
			g.Go(func() error {
				if ctx.Err() != nil {
					report.cancel()
					return nil
				}
				a.applyEntry(opCtx, pair, e, c, report)
				return nil
			})
		}
	}

	_ = g.Wait()
	c.flush()
}

func (a *changeApplier) applyEntry(ctx context.Context, pair Pair, e models.PlanEntry, c *committer, report *runReport) {
	var (
		rec *models.StatusRecord
		err error
	)

	switch e.Action {
	case models.CreateOnA, models.CreateOnB, models.UpdateAFromB, models.UpdateBFromA:
		rec, err = copyItem(ctx, pair, e)
	case models.DeleteOnA:
		err = pair.A.Delete(ctx, e.IdentityA, e.FingerprintA)
	case models.DeleteOnB:
		err = pair.B.Delete(ctx, e.IdentityB, e.FingerprintB)
	default:
		err = fmt.Errorf("unexpected action %s", e.Action)
	}

	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).
			Str("association_id", e.AssociationID).
			Stringer("action", e.Action).
			Msg("entry failed")
		report.fail(e, failureReason(err), err)
		return
	}

	c.stage(ctx, e, rec)
}

// copyItem copies the source side of e over the target side and returns
// the record describing both sides afterwards.
func copyItem(ctx context.Context, pair Pair, e models.PlanEntry) (*models.StatusRecord, error) {
	fromA := e.Action == models.CreateOnB || e.Action == models.UpdateBFromA

	src, dst := pair.B, pair.A
	srcIdentity, dstIdentity, dstFingerprint := e.IdentityB, e.IdentityA, e.FingerprintA
	if fromA {
		src, dst = pair.A, pair.B
		srcIdentity, dstIdentity, dstFingerprint = e.IdentityA, e.IdentityB, e.FingerprintB
	}

	it, err := src.Fetch(ctx, srcIdentity)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}

	var target models.ItemRef
	switch e.Action {
	case models.CreateOnA, models.CreateOnB:
		target, err = dst.Create(ctx, it.Content)
		if err != nil {
			return nil, fmt.Errorf("create target: %w", err)
		}
	default:
		fp, err := dst.Update(ctx, dstIdentity, it.Content, dstFingerprint)
		if err != nil {
			return nil, fmt.Errorf("update target: %w", err)
		}
		target = models.ItemRef{Identity: dstIdentity, Fingerprint: fp}
	}

	rec := &models.StatusRecord{AssociationID: e.AssociationID}
	if fromA {
		rec.IdentityA, rec.FingerprintA = srcIdentity, it.Fingerprint
		rec.IdentityB, rec.FingerprintB = target.Identity, target.Fingerprint
	} else {
		rec.IdentityA, rec.FingerprintA = target.Identity, target.Fingerprint
		rec.IdentityB, rec.FingerprintB = srcIdentity, it.Fingerprint
	}
	return rec, nil
}

// failureReason classifies a storage error for the run summary.
func failureReason(err error) models.FailureReason {
	switch {
	case errors.Is(err, adapter.ErrReadOnly):
		return models.ReasonReadOnly
	case errors.Is(err, adapter.ErrPreconditionFailed),
		errors.Is(err, adapter.ErrNotFound),
		errors.Is(err, adapter.ErrAlreadyExists):
		return models.ReasonLostRace
	case errors.Is(err, adapter.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return models.ReasonUnavailable
	default:
		return models.ReasonError
	}
}
