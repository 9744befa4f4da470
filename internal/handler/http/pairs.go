package http

import (
	"errors"
	"net/http"
	"slices"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/service"
	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/internal/utils"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/go-chi/chi/v5"
)

// pairResponse is the API view of a configured pair. LastRun is null until
// the pair has finished a run.
type pairResponse struct {
	Name    string             `json:"name"`
	LastRun *models.RunSummary `json:"last_run"`
}

func (h *Handler) listPairs(w http.ResponseWriter, r *http.Request) {
	names := h.syncJob.Pairs()
	pairs := make([]pairResponse, 0, len(names))
	for _, name := range names {
		p, err := h.pair(r, name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pairs = append(pairs, p)
	}

	writeJSON(w, r, http.StatusOK, pairs)
}

func (h *Handler) getPair(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(h.syncJob.Pairs(), name) {
		writeError(w, r, service.ErrUnknownPair)
		return
	}

	p, err := h.pair(r, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.syncJob.Trigger(name); err != nil {
		writeError(w, r, err)
		return
	}

	logger.FromRequest(r).Info().Str("pair", name).Msg("sync requested")
	writeJSON(w, r, http.StatusAccepted, map[string]string{"pair": name, "status": "scheduled"})
}

func (h *Handler) pair(r *http.Request, name string) (pairResponse, error) {
	summary, err := h.syncService.LastRun(r.Context(), name)
	switch {
	case errors.Is(err, store.ErrNoRuns):
		return pairResponse{Name: name}, nil
	case err != nil:
		return pairResponse{}, err
	}
	return pairResponse{Name: name, LastRun: &summary}, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if _, err := utils.WriteJSON(w, v, status); err != nil {
		logger.FromRequest(r).Err(err).Str("func", "writeJSON").Msg("error writing response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		logger.FromRequest(r).Err(err).Str("func", "writeError").Msg("request failed")
	}
	utils.WriteJSONError(w, err.Error(), status)
}
