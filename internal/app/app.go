package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/metrics"
	"github.com/MKhiriev/go-pim-sync/internal/service"
	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/models"
)

// App holds the wired components shared by the commands.
type App struct {
	cfg       *config.StructuredConfig
	storages  *store.Storages
	services  *service.Services
	pairs     map[string]service.Pair
	metrics   *metrics.SyncMetrics
	buildInfo models.AppBuildInfo

	out    io.Writer
	logger *logger.Logger
}

// NewApp opens the status store and builds the configured pairs. The
// caller must Close the app.
func NewApp(ctx context.Context, cfg *config.StructuredConfig, buildInfo models.AppBuildInfo, out io.Writer, log *logger.Logger) (*App, error) {
	storages, err := store.NewStorages(ctx, cfg.Storage.Status.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("create storages: %w", err)
	}

	pairs, err := service.NewPairs(cfg.Pairs, cfg.Sync.ConflictPolicy, log)
	if err != nil {
		_ = storages.Status.Close()
		return nil, fmt.Errorf("create pairs: %w", err)
	}

	syncMetrics := metrics.NewSyncMetrics()

	a := &App{
		cfg:       cfg,
		storages:  storages,
		services:  service.NewServices(storages, pairs, syncMetrics, cfg.Sync, log),
		pairs:     make(map[string]service.Pair, len(pairs)),
		metrics:   syncMetrics,
		buildInfo: buildInfo,
		out:       out,
		logger:    log,
	}
	for _, p := range pairs {
		a.pairs[p.Name] = p
	}

	return a, nil
}

// Close releases the status store.
func (a *App) Close() error {
	return a.storages.Status.Close()
}

// selectPairs resolves names to the built pairs in the given order,
// skipping repeats. No names selects every pair.
func (a *App) selectPairs(names []string) ([]service.Pair, error) {
	if len(names) == 0 {
		names = []string{""}
	}

	var pairs []service.Pair
	seen := make(map[string]bool)
	for _, name := range names {
		defs, err := a.cfg.SelectPairs(name)
		if err != nil {
			return nil, err
		}
		for _, def := range defs {
			if !seen[def.Name] {
				seen[def.Name] = true
				pairs = append(pairs, a.pairs[def.Name])
			}
		}
	}
	return pairs, nil
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
