package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/models"
)

// Pair is a configured pair of storages together with the conflict policy
// used for it. Pairs are independent: each has its own status records, lock
// and resolver.
type Pair struct {
	Name     string
	A        adapter.Storage
	B        adapter.Storage
	Resolver ConflictResolver
}

// SyncPlanner classifies every association of a pair into an action.
type SyncPlanner interface {
	// BuildSyncPlan compares the previous status records with fresh
	// listings of both sides. It performs no I/O.
	BuildSyncPlan(ctx context.Context, pairID string, records []models.StatusRecord, listingA, listingB []models.ItemRef) (models.SyncPlan, error)

	// PairByIdent merges record-less entries present on one side only whose
	// items carry the same ident (UID, or content hash without one).
	// identsA and identsB map listed identities to idents. It performs no
	// I/O.
	PairByIdent(plan models.SyncPlan, identsA, identsB map[string]string) models.SyncPlan
}

// ConflictResolver decides which side wins a conflict.
type ConflictResolver interface {
	Resolve(ctx context.Context, conflict models.ConflictInfo) (models.Resolution, error)
}

// SyncService runs the synchronization of a single pair.
type SyncService interface {
	// SyncPair locks the pair, plans, resolves conflicts, applies the plan
	// and persists the run summary. Per-item failures are reported in the
	// summary; the returned error is reserved for failures of the whole run
	// (lock held, corrupt status store, listing failure).
	SyncPair(ctx context.Context, pair Pair) (models.RunSummary, error)

	// Plan returns what SyncPair would do without touching any storage or
	// the status store. Conflicts are reported unresolved.
	Plan(ctx context.Context, pair Pair) (models.SyncPlan, error)

	// LastRun returns the persisted summary of the pair's latest run.
	LastRun(ctx context.Context, pairID string) (models.RunSummary, error)
}

// SyncJob runs every pair periodically and on demand.
type SyncJob interface {
	// Start runs all pairs once, then every interval (5 minutes if interval
	// is zero or negative) and whenever Trigger is called. Any previously
	// running job is stopped first.
	Start(ctx context.Context, interval time.Duration)

	// Trigger schedules a run of the named pair as soon as possible.
	// Returns [ErrUnknownPair] for a name the job does not know.
	Trigger(name string) error

	// Pairs returns the names of the pairs the job runs.
	Pairs() []string

	// Stop signals the background goroutine to exit and blocks until it has
	// fully terminated.
	Stop()
}

// IDGenerator hands out new run ids.
type IDGenerator interface {
	Generate() string
}

// RunObserver is notified about every finished run.
type RunObserver interface {
	ObserveRun(summary models.RunSummary, err error)
}
