package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/zap/internal/noteservice"
	"github.com/starford/zap/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, sessions *session.Manager, authEnabled bool, token string, sseHandler http.Handler, opts ...HandlerOption) chi.Router {
	h := NewHandler(svc, sessions, opts...)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Put("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
			r.Get("/backlinks", h.Backlinks)

			// Live editing session.
			r.Get("/editor", h.OpenEditor)
			r.Post("/editor", h.DispatchEvents)
			r.Delete("/editor", h.CloseEditor)
		})
	})

	r.Post("/daily", h.Daily)
	r.Get("/tags", h.Tags)
	r.Get("/tasks", h.Tasks)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
