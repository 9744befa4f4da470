package app

import (
	"context"

	"github.com/MKhiriev/go-pim-sync/internal/config"
	handlerhttp "github.com/MKhiriev/go-pim-sync/internal/handler/http"
	"github.com/MKhiriev/go-pim-sync/internal/server"
	"github.com/MKhiriev/go-pim-sync/internal/workers"
)

// Daemon runs every pair on the configured interval until ctx is cancelled.
// Alongside the job it runs the filesystem watcher when sync.watch is set
// and the HTTP API when server.address is set.
func (a *App) Daemon(ctx context.Context) error {
	a.logger.Info().
		Str("version", a.buildInfo.BuildVersion()).
		Dur("interval", a.cfg.Sync.Interval).
		Bool("watch", a.cfg.Sync.Watch).
		Str("address", a.cfg.Server.HTTPAddress).
		Int("pairs", len(a.pairs)).
		Msg("starting daemon")

	apiServer, err := a.newServer()
	if err != nil {
		return err
	}

	err = workers.NewWorkers(a.jobWorker(), a.newWatcher(), apiServer).Run(ctx)
	a.logger.Info().Msg("daemon stopped")
	return err
}

func (a *App) jobWorker() workers.Worker {
	job := a.services.SyncJob
	return workers.WorkerFunc(func(ctx context.Context) error {
		job.Start(ctx, a.cfg.Sync.Interval)
		<-ctx.Done()
		job.Stop()
		return nil
	})
}

// newWatcher returns a watcher over the filesystem sides of every pair, or
// nil when watching is disabled or no pair has a filesystem side.
func (a *App) newWatcher() workers.Worker {
	if !a.cfg.Sync.Watch {
		return nil
	}

	job := a.services.SyncJob
	log := a.logger
	watcher := workers.NewWatcher(a.cfg.Sync.WatchDebounce, func(pair string) {
		if err := job.Trigger(pair); err != nil {
			log.Err(err).Str("func", "*App.newWatcher").Str("pair", pair).Msg("error triggering sync")
		}
	}, a.logger)

	for _, p := range a.cfg.Pairs {
		for _, side := range []config.StorageDefinition{p.A, p.B} {
			if side.Type == config.StorageFilesystem {
				watcher.Add(side.Path, p.Name)
			}
		}
	}

	if watcher.Len() == 0 {
		a.logger.Warn().Msg("sync.watch is set but no pair has a filesystem side")
		return nil
	}
	return watcher
}

// newServer returns the API server, or nil when no address is configured.
func (a *App) newServer() (workers.Worker, error) {
	if a.cfg.Server.HTTPAddress == "" {
		return nil, nil
	}

	handler := handlerhttp.NewHandler(
		a.services.SyncService,
		a.services.SyncJob,
		a.metrics.Handler(),
		a.buildInfo,
		a.logger,
	)

	srv, err := server.NewServer(handler.Init(), a.cfg.Server, a.logger)
	if err != nil {
		return nil, err
	}
	return srv, nil
}
