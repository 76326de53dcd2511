/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/cases/*       Case workflow (facts, confirm, freeze, calculate)
  /api/estimate      One-shot estimate
  /api/rules         Rule-table metadata
  /api/scenarios/*   Demo scenarios and reset

SECURITY NOTE:
  No authentication middleware. All endpoints are public; front the
  server with an authenticating proxy in production.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Case workflow
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.ListCases)
			r.Post("/", h.CreateCase)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCase)
				r.Put("/facts/{field}", h.UpdateFact)
				r.Post("/facts/{field}/confirm", h.ConfirmFact)
				r.Post("/confirm-all", h.ConfirmAll)
				r.Post("/freeze", h.FreezeCase)
				r.Post("/calculate", h.CalculateCase)
				r.Get("/results", h.GetResults)
			})
		})

		// Stateless calculation
		r.Post("/estimate", h.Estimate)

		// Rule table
		r.Get("/rules", h.GetRules)

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
