package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the scoring routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/score", func(r chi.Router) {
		r.Post("/", h.HandleScore)
		r.Post("/batch", h.HandleScoreBatch)
		r.Get("/live", h.HandleLive)
		r.Get("/schema", h.HandleGetSchema)
	})
	r.Get("/api/model", h.HandleGetModel)
}
