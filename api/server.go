/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/parameters/*           Fiscal parameter tables
  /api/tax/*                  Stateless calculator
  /api/enterprises/*          Regime settings, missions, stats, charges
  /api/scenarios/*            Demo scenarios

SEE ALSO:
  - handlers.go, charges.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultCORSOrigins are the frontend origins allowed when none are configured.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/parameters/{year}", h.GetParameters)

		// Calculator routes
		r.Route("/tax", func(r chi.Router) {
			r.Post("/contribution", h.ComputeContribution)
			r.Post("/income-tax", h.ComputeIncomeTax)
			r.Post("/vat", h.ComputeVAT)
			r.Post("/provisions", h.ComputeProvisions)
			r.Get("/ceiling", h.CheckCeiling)
			r.Get("/charge-rate", h.GetChargeRate)
		})

		// Enterprise routes
		r.Route("/enterprises", func(r chi.Router) {
			r.Get("/", h.ListEnterprises)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEnterprise)
				r.Put("/", h.PutEnterprise)
				r.Get("/missions", h.ListMissions)
				r.Post("/missions", h.CreateMission)
				r.Get("/stats", h.GetEnterpriseStats)
				r.Get("/stats/monthly", h.GetMonthlyStats)

				// Ledger routes
				r.Route("/charges", func(r chi.Router) {
					r.Get("/", h.ListCharges)
					r.Post("/generate", h.GenerateCharges)
					r.Post("/recalculate", h.RecalculateCharges)
					r.Get("/overdue", h.ListOverdue)
					r.Get("/upcoming", h.ListUpcoming)
					r.Get("/stats", h.GetStatistics)
					r.Get("/history", h.GetPaymentHistory)
					r.Get("/export", h.ExportCharges)
					r.Get("/{chargeID}", h.GetCharge)
					r.Post("/{chargeID}/pay", h.PayCharge)
					r.Delete("/{chargeID}/pay", h.UnpayCharge)
				})
			})
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
