/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for local tooling

SECURITY NOTE:
  No authentication middleware. The server is meant to run on localhost
  for an operator's own books, not on a public interface.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/invoicectl: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/generate", h.GenerateInvoices)
			r.Get("/{filename}/preview", h.PreviewInvoice)
		})

		r.Route("/registry", func(r chi.Router) {
			r.Get("/", h.ListRegistry)
			r.Post("/paid", h.MarkPaid)
		})

		r.Get("/turnover", h.GetTurnover)
	})

	return r
}
