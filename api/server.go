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
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. zerolog:    Structured request logging
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/catalog/*      Cascade option reads
  /api/selection/*    Selection derivation
  /api/companies/*    Companies and contacts
  /api/odfs/*         Frames and port availability
  /api/viabilities/*  Viability lifecycle
  /api/approvals/*    Multi-step approval sessions
  /api/orders/*       Orders, attachments, circuit creation
  /api/circuits/*     Circuit lookup
  /api/scenarios/*    Demo data loaders (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Catalog cascade reads
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/areas", h.ListAreas)
			r.Get("/areas/{id}/locations", h.ListLocations)
			r.Get("/locations/{id}/modules", h.ListModules)
			r.Get("/locations/{id}/routes", h.ListRoutes)
			r.Get("/modules/{id}", h.GetModule)
			r.Get("/connection-types", h.ListConnectionTypes)
			r.Get("/price", h.GetPrice)
		})

		// Selection derivation
		r.Post("/selection/apply", h.ApplySelectionChange)

		// Companies and contacts
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.ListCompanies)
			r.Get("/{id}/contacts", h.ListContacts)
		})

		// ODF availability
		r.Route("/odfs", func(r chi.Router) {
			r.Get("/", h.ListODFs)
			r.Get("/{code}/availability", h.GetAvailability)
		})

		// Viability lifecycle
		r.Route("/viabilities", func(r chi.Router) {
			r.Get("/", h.ListViabilities)
			r.Post("/", h.CreateViability)
			r.Get("/{id}", h.GetViability)
			r.Get("/{id}/order", h.GetViabilityOrder)
			r.Post("/{id}/quote", h.QuoteViability)
			r.Post("/{id}/cancel", h.CancelViability)
			r.Post("/{id}/reject", h.RejectViability)
			r.Post("/{id}/approve-special", h.ApproveSpecialViability)
			r.Post("/{id}/approval", h.StartApproval)
		})

		// Multi-step approval sessions
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/{sid}", h.GetApproval)
			r.Post("/{sid}/contacts", h.SetApprovalContacts)
			r.Post("/{sid}/ports", h.SetApprovalPorts)
			r.Post("/{sid}/back", h.ApprovalBack)
			r.Post("/{sid}/confirm", h.ApprovalConfirm)
			r.Post("/{sid}/submit", h.ApprovalSubmit)
			r.Delete("/{sid}", h.AbandonApproval)
		})

		// Orders and circuits
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Get("/{id}/attachments", h.ListAttachments)
			r.Post("/{id}/attachments", h.AddAttachment)
			r.Get("/{id}/circuit", h.GetOrderCircuit)
			r.Post("/{id}/circuit", h.CreateCircuit)
		})

		r.Get("/circuits/{id}", h.GetCircuit)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(h *Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			h.Log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
