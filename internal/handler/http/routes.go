package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer, h.withTraceID, h.withLogging)

	if h.metrics != nil {
		router.Method("GET", "/metrics", h.metrics)
	}

	router.Route("/api", func(r chi.Router) {
		r.Get("/version", h.getVersion)
		r.Get("/pairs", h.listPairs)
		r.Get("/pairs/{name}", h.getPair)
		r.Post("/pairs/{name}/sync", h.triggerSync)
	})

	return router
}
