package app

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/models"
)

// StatusResult is the output of the status command for one pair. LastRun is
// nil when the pair has never run.
type StatusResult struct {
	Pair    string             `json:"pair"`
	LastRun *models.RunSummary `json:"last_run"`
}

// Status prints the last persisted run summary of the pairs named
// pairNames, or of every pair when none are named.
func (a *App) Status(ctx context.Context, pairNames []string) error {
	pairs, err := a.selectPairs(pairNames)
	if err != nil {
		return err
	}

	results := make([]StatusResult, 0, len(pairs))
	for _, p := range pairs {
		result := StatusResult{Pair: p.Name}
		summary, err := a.services.SyncService.LastRun(ctx, p.Name)
		switch {
		case errors.Is(err, store.ErrNoRuns):
		case err != nil:
			return err
		default:
			result.LastRun = &summary
		}
		results = append(results, result)
	}

	return a.writeJSON(results)
}
