// Package api assembles the HTTP router: middleware, public health and
// metrics endpoints, Swagger UI and the admin API.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/execassist/internal/api/handler"
	"github.com/albapepper/execassist/internal/config"
	"github.com/albapepper/execassist/internal/models"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, auth *Authenticator, gatherer prometheus.Gatherer, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "X-Request-Id", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// Admin API
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin))

		r.Route("/engine", func(r chi.Router) {
			r.Get("/status", h.EngineStatus)
			r.Post("/start", h.EngineStart)
			r.Post("/stop", h.EngineStop)
			r.Post("/run", h.EngineRun)
			r.Put("/interval", h.EngineSetInterval)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", h.SchedulerStatus)
			r.Post("/start", h.SchedulerStart)
			r.Post("/stop", h.SchedulerStop)
			r.Post("/scan/urgent", h.ScanUrgent)
			r.Post("/scan/digest", h.ScanDigest)
		})

		r.Get("/notifications/stats", h.NotificationStats)
	})

	return r
}
