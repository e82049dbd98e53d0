package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// MountRoutes registers the event receiver routes on the given chi router.
// A non-empty secret guards the event routes with RequireSignature.
func MountRoutes(r chi.Router, h *Handlers, secret string) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if secret != "" {
			r.Use(RequireSignature(secret, SignatureHeader))
		}
		r.Post("/runs", h.RunStarted)
		r.Post("/specs", h.SpecFinished)
	})
}

// NewRouter builds a router with request logging, panic recovery and all routes mounted.
func NewRouter(h *Handlers, secret string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger)
	r.Use(chimw.Recoverer)
	MountRoutes(r, h, secret)
	return r
}
