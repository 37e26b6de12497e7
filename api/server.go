/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/paygroups/*      Pay group and run creation
  /api/runs/*           Run lifecycle and views
  /api/employees/*      Employee details and balances

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		// Pay group routes
		r.Route("/paygroups", func(r chi.Router) {
			r.Get("/", h.ListPayGroups)
			r.Get("/{id}", h.GetPayGroup)
			r.Get("/{id}/employees", h.ListGroupEmployees)
			r.Get("/{id}/runs", h.ListRuns)
			r.Post("/{id}/runs", h.StartRun)
		})

		// Run lifecycle routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/{id}", h.GetRun)
			r.Get("/{id}/records", h.GetRecords)
			r.Get("/{id}/records/{employeeID}", h.GetRecord)
			r.Get("/{id}/totals", h.GetTotals)
			r.Put("/{id}/inputs/{employeeID}", h.UpsertInput)
			r.Post("/{id}/recalculate", h.Recalculate)
			r.Post("/{id}/finalize", h.Finalize)
			r.Post("/{id}/revert", h.Revert)
			r.Post("/{id}/approve", h.Approve)
			r.Post("/{id}/pay", h.MarkPaid)
			r.Post("/{id}/cancel", h.Cancel)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balances", h.GetBalances)
		})
	})

	return r
}
