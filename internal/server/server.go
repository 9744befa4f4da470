package server

import (
	"net/http"

	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
)

// NewServer returns the HTTP server serving router on cfg.HTTPAddress. It
// fails when no address is configured.
func NewServer(router http.Handler, cfg config.Server, logger *logger.Logger) (Server, error) {
	if cfg.HTTPAddress == "" {
		return nil, errNoServersAreCreated
	}

	logger.Info().Str("address", cfg.HTTPAddress).Msg("creating new server...")
	return newHTTPServer(router, cfg.HTTPAddress, logger.GetChildLogger()), nil
}
