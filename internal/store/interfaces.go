package store

import (
	"context"

	"github.com/MKhiriev/go-pim-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// StatusStore keeps the per-pair status records and run summaries.
type StatusStore interface {
	// Load returns every record of the pair, or an empty slice on the
	// first run. Unreadable or invalid data yields [ErrCorruptStore].
	Load(ctx context.Context, pairID string) ([]models.StatusRecord, error)
	// Begin opens a transaction scoped to the pair. A second Begin for the
	// same pair fails with [ErrTxInProgress] until the first one ends.
	Begin(ctx context.Context, pairID string) (StatusTx, error)
	// SaveRun persists the summary of a finished run.
	SaveRun(ctx context.Context, summary models.RunSummary) error
	// LastRun returns the most recent summary of the pair or [ErrNoRuns].
	LastRun(ctx context.Context, pairID string) (models.RunSummary, error)
	// Pairs lists the pairs that have records or runs.
	Pairs(ctx context.Context) ([]string, error)
	Close() error
}

// StatusTx is an all-or-nothing batch of record changes for one pair.
type StatusTx interface {
	Upsert(rec models.StatusRecord) error
	Delete(associationID string) error
	Commit() error
	// Rollback discards the batch. It is safe to call after Commit.
	Rollback() error
}

// PairLocker gives a run exclusive access to a pair.
type PairLocker interface {
	// Lock returns [ErrPairLocked] without waiting when the pair is held.
	Lock(pairID string) (unlock func() error, err error)
}

// ErrorClassificator tells whether a failed database operation is worth
// another attempt.
type ErrorClassificator interface {
	Classify(err error) ErrorClassification
}
