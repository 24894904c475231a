package http

import (
	"github.com/go-chi/chi/v5"
)

// MapHttpRoutes registers the board. /healthz is matched before the room
// pattern, so a room of that name is not reachable.
func MapHttpRoutes(r *chi.Mux, boardHandler *BoardHandler, healthHandler *HealthHandler) {
	r.Use(SecurityHeaders)

	r.Get("/", boardHandler.Root)
	r.Get("/healthz", healthHandler.Ready)

	r.Route("/{room}", func(r chi.Router) {
		r.Use(Sessions)

		r.Get("/", boardHandler.Index)
		r.Get("/comments", boardHandler.Comments)
		r.Post("/post-comment", boardHandler.PostComment)
	})
}
