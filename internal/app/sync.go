package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-pim-sync/internal/service"
	"github.com/MKhiriev/go-pim-sync/models"
)

// SyncResult is the output of one pair of a sync or dry-run command.
type SyncResult struct {
	Pair    string             `json:"pair"`
	Summary *models.RunSummary `json:"summary,omitempty"`
	Plan    *models.SyncPlan   `json:"plan,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Sync runs the pairs named pairNames, or every pair when none are named,
// once.
// With dryRun it only computes and prints the plans. Results are printed in
// pair order after all pairs have finished.
func (a *App) Sync(ctx context.Context, pairNames []string, dryRun bool) error {
	pairs, err := a.selectPairs(pairNames)
	if err != nil {
		return err
	}

	byName := make(map[string]service.Pair, len(pairs))
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		byName[p.Name] = p
		names = append(names, p.Name)
	}

	var mu sync.Mutex
	results := make(map[string]SyncResult, len(pairs))

	runErr := a.services.Runner.RunAll(ctx, names, func(ctx context.Context, name string) error {
		result, err := a.syncOne(ctx, byName[name], dryRun)

		mu.Lock()
		results[name] = result
		mu.Unlock()

		return err
	})

	for _, name := range names {
		result, ok := results[name]
		if !ok {
			result = SyncResult{Pair: name, Error: "not started"}
		}
		if err := a.writeJSON(result); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrSyncFailed, runErr)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrSyncFailed, ctx.Err())
	}
	return nil
}

func (a *App) syncOne(ctx context.Context, pair service.Pair, dryRun bool) (SyncResult, error) {
	result := SyncResult{Pair: pair.Name}

	if dryRun {
		plan, err := a.services.SyncService.Plan(ctx, pair)
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
		result.Plan = &plan
		return result, nil
	}

	summary, err := a.services.SyncService.SyncPair(ctx, pair)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Summary = &summary
	return result, nil
}
