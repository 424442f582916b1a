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
  3. requestLogger: Structured request logging via zerolog
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/doctors/*       Doctor registry and availability
  /api/appointments/*  Reserve / cancel / complete
  /api/patients/*      Bed assignment
  /api/wards/*         Ward registry and occupancy
  /api/finance/*       Accounts, budgets, payments
  /api/inventory/*     Stock and forecasting
  /api/analytics/*     Reports
  /api/scenarios/*     Demo scenarios
  /metrics             Prometheus metrics
  /healthz             Liveness probe

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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Doctor routes
		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", h.ListDoctors)
			r.Post("/", h.RegisterDoctor)
			r.Get("/{id}/availability", h.DoctorAvailability)
		})
		r.Get("/availability", h.AvailabilityBySpecialty)

		// Appointment routes
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.ListAppointments)
			r.Post("/", h.Reserve)
			r.Post("/cancel", h.CancelByCriteria)
			r.Delete("/{id}", h.CancelByID)
			r.Post("/{id}/complete", h.Complete)
		})

		// Ward and patient routes
		r.Route("/wards", func(r chi.Router) {
			r.Post("/", h.RegisterWard)
			r.Get("/occupancy", h.Occupancy)
		})
		r.Route("/patients", func(r chi.Router) {
			r.Post("/", h.RegisterPatient)
			r.Post("/{id}/assign", h.Assign)
			r.Post("/{id}/discharge", h.Discharge)
			r.Post("/{id}/transfer", h.Transfer)
			r.Get("/{id}/moves", h.PatientMoves)
			r.Get("/{id}/records", h.PatientRecords)
		})

		// Finance routes
		r.Route("/finance", func(r chi.Router) {
			r.Get("/accounts", h.ListAccounts)
			r.Get("/accounts/{id}", h.GetAccount)
			r.Post("/accounts/{id}/debit", h.Debit)
			r.Post("/accounts/{id}/credit", h.Credit)
			r.Get("/budgets/{department}", h.GetBudget)
			r.Post("/budgets/{department}/spend", h.SpendBudget)
			r.Post("/payments", h.SchedulePayment)
			r.Post("/payments/{id}/complete", h.CompletePayment)
			r.Get("/summary", h.ExpenseSummary)
		})

		// Inventory routes
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.RegisterItem)
			r.Get("/low-stock", h.LowStock)
			r.Get("/expiring", h.Expiring)
			r.Get("/reorder-suggestions", h.ReorderSuggestions)
			r.Post("/{id}/usage", h.RecordUsage)
			r.Put("/{id}/stock", h.SetStock)
		})

		// Analytics routes
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/", h.Analytics)
			r.Get("/patients/{id}", h.PatientInsights)
			r.Get("/demand", h.DemandProfile)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Observability
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestLogger logs one line per request with method, path, status and
// latency, tagged with the chi request id.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
