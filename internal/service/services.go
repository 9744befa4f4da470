package service

import (
	"fmt"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/internal/utils"
	"github.com/MKhiriev/go-pim-sync/internal/workers"
)

type Services struct {
	SyncService SyncService
	SyncJob     SyncJob
	Runner      *workers.PairRunner
	Pairs       []Pair
}

func NewServices(storages *store.Storages, pairs []Pair, observer RunObserver, cfg config.Sync, logger *logger.Logger) *Services {
	syncSvc := NewSyncService(storages.Status, storages.Locker, utils.NewUUIDGenerator(), observer, SyncOptions{
		Concurrency: cfg.Concurrency,
		BatchSize:   cfg.BatchSize,
	}, logger)
	runner := workers.NewPairRunner(cfg.PairParallelism, logger)

	return &Services{
		SyncService: syncSvc,
		SyncJob:     NewSyncJob(syncSvc, pairs, runner, logger),
		Runner:      runner,
		Pairs:       pairs,
	}
}

// NewPairs builds the storages and resolvers of the configured pairs.
// Pairs without a conflict policy use defaultPolicy.
func NewPairs(defs []config.Pair, defaultPolicy string, log *logger.Logger) ([]Pair, error) {
	pairs := make([]Pair, 0, len(defs))
	for _, def := range defs {
		resolver, err := NewResolver(def.Policy(defaultPolicy))
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", def.Name, err)
		}
		a, err := adapter.NewStorage(def.A, log)
		if err != nil {
			return nil, fmt.Errorf("pair %s: side A: %w", def.Name, err)
		}
		b, err := adapter.NewStorage(def.B, log)
		if err != nil {
			return nil, fmt.Errorf("pair %s: side B: %w", def.Name, err)
		}
		pairs = append(pairs, Pair{Name: def.Name, A: a, B: b, Resolver: resolver})
	}
	return pairs, nil
}
