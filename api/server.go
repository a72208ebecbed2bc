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
  3. zap logger: Structured request logging
  4. Metrics:    Prometheus request counters/latency
  5. CORS:       Cross-origin requests for the studio frontend

ROUTE GROUPS:
  /api/enrolments/*     Enrolment lifecycle, billing status, purchases, moves
  /api/attendance/*     Credit consumption hook
  /api/occurrences/*    Class occurrence cancellation
  /api/adjustments/*    Cancellation credits and reversals
  /api/away-periods/*   Away period management
  /api/makeups/*        Makeup seat availability and booking
  /api/plans, /api/templates, /api/holidays   Catalog (admin)
  /api/admin/*          Batch snapshot refresh
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness probe

SECURITY NOTE:
  No authentication middleware currently. The service sits behind the
  studio's API gateway, which terminates auth.

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
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Enrolment routes
		r.Route("/enrolments", func(r chi.Router) {
			r.Post("/", h.CreateEnrolment)
			r.Post("/billing-status", h.GetBatchBillingStatus)
			r.Get("/{id}/billing-status", h.GetBillingStatus)
			r.Put("/{id}/paid-through", h.SetPaidThrough)
			r.Put("/{id}/status", h.SetStatus)
			r.Post("/{id}/purchases", h.RecordPurchase)
			r.Post("/{id}/move", h.MoveEnrolment)
		})

		// Attendance hook
		r.Route("/attendance", func(r chi.Router) {
			r.Post("/consume", h.RegisterConsumption)
		})

		// Occurrence cancellation
		r.Route("/occurrences", func(r chi.Router) {
			r.Post("/cancel", h.CancelOccurrence)
		})

		// Adjustment routes
		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/", h.CreateAdjustment)
			r.Delete("/{id}", h.ReverseAdjustment)
		})

		// Away period routes
		r.Route("/away-periods", func(r chi.Router) {
			r.Post("/", h.CreateAwayPeriod)
			r.Put("/{id}", h.UpdateAwayPeriod)
			r.Delete("/{id}", h.DeleteAwayPeriod)
		})

		// Makeup routes
		r.Route("/makeups", func(r chi.Router) {
			r.Get("/availability", h.GetMakeupAvailability)
			r.Post("/bookings", h.BookMakeup)
		})

		// Catalog routes (admin)
		r.Post("/plans", h.CreatePlan)
		r.Post("/templates", h.CreateTemplate)
		r.Post("/holidays", h.CreateHoliday)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/refresh", h.TriggerRefresh)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// requestLogger logs each request with the fields operators filter on.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
