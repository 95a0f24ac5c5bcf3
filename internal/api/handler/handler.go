// Package handler provides HTTP handlers for the public and admin endpoints.
// Handlers depend on small interfaces so they can be exercised without a
// database or running timers.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/api/respond"
	"github.com/albapepper/execassist/internal/cache"
	"github.com/albapepper/execassist/internal/engine"
	"github.com/albapepper/execassist/internal/notifications"
	"github.com/albapepper/execassist/internal/store"
)

// EngineController is the autonomous engine as seen by the admin API.
type EngineController interface {
	Start(ctx context.Context) error
	Stop() error
	Status() engine.Status
	RunNow(ctx context.Context) (engine.CycleReport, error)
	SetInterval(minutes int) (engine.Status, error)
}

// SchedulerController is the notification scheduler as seen by the admin API.
type SchedulerController interface {
	Start(ctx context.Context) error
	Stop() error
	Status() notifications.SchedulerStatus
	RunUrgentScan(ctx context.Context) notifications.ScanResult
	RunDigestScan(ctx context.Context) notifications.ScanResult
}

// StatsSource reports notification ledger counts.
type StatsSource interface {
	NotificationCounts(ctx context.Context, since time.Time) ([]store.NotificationCount, error)
}

// HealthChecker verifies database connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the handler collaborators.
type Deps struct {
	// Base outlives requests. Timers started over HTTP run with it.
	Base      context.Context
	Engine    EngineController
	Scheduler SchedulerController
	Stats     StatsSource
	DB        HealthChecker
	Cache     *cache.Cache
	Clock     clockwork.Clock
	Version   string
	Logger    *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	base      context.Context
	engine    EngineController
	scheduler SchedulerController
	stats     StatsSource
	db        HealthChecker
	cache     *cache.Cache
	clock     clockwork.Clock
	version   string
	logger    *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	h := &Handler{
		base:      d.Base,
		engine:    d.Engine,
		scheduler: d.Scheduler,
		stats:     d.Stats,
		db:        d.DB,
		cache:     d.Cache,
		clock:     d.Clock,
		version:   d.Version,
		logger:    d.Logger,
	}
	if h.base == nil {
		h.base = context.Background()
	}
	if h.cache == nil {
		h.cache = cache.New(true)
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "Execassist API",
		"version": h.version,
		"status":  "running",
		"docs":    "/docs/",
		"metrics": "/metrics",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	ts := h.clock.Now().UTC().Format(time.RFC3339)
	if h.db == nil || h.db.HealthCheck(r.Context()) != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": ts,
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": ts,
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}
