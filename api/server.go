/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/dashboard, /api/report   Composite read views
  /api/budgets/*                Budget management
  /api/dues, /api/units/*       Dues tracking and statements
  /api/transactions/*           Ledger listing and CSV import
  /api/categories, /api/rules   Reference data
  /api/balances, /api/reserve   Account views

SECURITY NOTE:
  No authentication middleware. Deployment sits behind an authenticating
  proxy.

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

	r.Route("/api", func(r chi.Router) {
		// Composite views
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/report", h.GetReport)

		// Budgets
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.UpsertBudget)
			r.Post("/copy", h.CopyBudgets)
			r.Get("/lock", h.GetBudgetLock)
			r.Post("/lock", h.SetBudgetLock)
			r.Get("/summary", h.GetSummary)
		})

		// Dues
		r.Get("/dues", h.GetDuesStatus)
		r.Route("/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Get("/past-dues", h.ListPastDues)
			r.Get("/{number}/statement", h.GetStatement)
			r.Get("/{number}/payments", h.GetPayments)
			r.Post("/{number}/past-due", h.SeedPastDue)
		})

		// Accounts and balances
		r.Get("/balances", h.GetBalances)
		r.Get("/reserve", h.GetReserve)
		r.Get("/accounts", h.ListAccounts)

		// Ledger
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/upload", h.UploadTransactions)
			r.Put("/{id}/category", h.RecategorizeTransaction)
		})

		// Reference data
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.SaveCategory)
		})
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)
		})

		// Config
		r.Put("/config/current-year", h.SetCurrentYear)
	})

	return r
}
