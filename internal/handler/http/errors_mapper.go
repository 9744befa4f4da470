package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-pim-sync/internal/service"
	"github.com/MKhiriev/go-pim-sync/internal/store"
)

var errorStatusMap = map[error]int{
	service.ErrUnknownPair: http.StatusNotFound,
	store.ErrNoRuns:        http.StatusNotFound,

	store.ErrCorruptStore:     http.StatusInternalServerError,
	store.ErrBuildingSQLQuery: http.StatusInternalServerError,
	store.ErrExecutingQuery:   http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
