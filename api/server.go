/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for storefront/admin frontends

ROUTE GROUPS:
  /api/credits/*       Ledger operations
  /api/users/*         Per-user queries
  /api/gift-cards/*    Gift card issuance and redemption
  /api/credit-types    Reference data

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
// allowedOrigins come from configuration; empty means same-origin only.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Credit routes
		r.Route("/credits", func(r chi.Router) {
			r.Post("/", h.GrantCredit)
			r.Get("/{id}", h.GetCredit)
			r.Delete("/{id}", h.InvalidateCredit)
			r.Get("/{id}/events", h.GetCreditEvents)
			r.Post("/{id}/authorize", h.AuthorizeCredit)
			r.Post("/{id}/capture", h.CaptureCredit)
			r.Post("/{id}/void", h.VoidCredit)
			r.Post("/{id}/credit", h.CreditBack)
		})

		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/credits", h.ListUserCredits)
			r.Get("/{id}/balance", h.GetUserBalance)
		})

		// Gift card routes
		r.Route("/gift-cards", func(r chi.Router) {
			r.Post("/", h.IssueGiftCard)
			r.Post("/redeem", h.RedeemGiftCard)
			r.Get("/{code}", h.GetGiftCard)
			r.Delete("/{code}", h.DeactivateGiftCard)
		})

		// Reference data
		r.Get("/credit-types", h.ListCreditTypes)
	})

	return r
}
