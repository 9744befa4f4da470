package http

import (
	"net/http"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/service"
	"github.com/MKhiriev/go-pim-sync/models"
)

type Handler struct {
	syncService service.SyncService
	syncJob     service.SyncJob
	metrics     http.Handler
	buildInfo   models.AppBuildInfo

	logger *logger.Logger
}

// NewHandler creates the API handler. metrics may be nil, in which case
// /metrics is not served.
func NewHandler(syncService service.SyncService, syncJob service.SyncJob, metrics http.Handler, buildInfo models.AppBuildInfo, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		syncService: syncService,
		syncJob:     syncJob,
		metrics:     metrics,
		buildInfo:   buildInfo,
		logger:      logger,
	}
}
