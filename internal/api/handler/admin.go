package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/albapepper/execassist/internal/api/respond"
	"github.com/albapepper/execassist/internal/cache"
	"github.com/albapepper/execassist/internal/engine"
	"github.com/albapepper/execassist/internal/store"
)

const (
	statsCacheKey = "notifications:stats"
	statsWindow   = 24 * time.Hour
)

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// EngineStatus reports the autonomous engine run state.
// @Summary Engine status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} engine.Status
// @Router /api/v1/admin/engine/status [get]
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.engine.Status())
}

// EngineStart starts the engine timer.
// @Summary Start engine
// @Tags admin
// @Security BearerAuth
// @Router /api/v1/admin/engine/start [post]
func (h *Handler) EngineStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(h.base); err != nil {
		h.logger.Error("Engine start failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "ENGINE_START_FAILED", "Failed to start engine")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.engine.Status())
}

// EngineStop stops the engine timer.
// @Summary Stop engine
// @Tags admin
// @Security BearerAuth
// @Router /api/v1/admin/engine/stop [post]
func (h *Handler) EngineStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(); err != nil {
		h.logger.Error("Engine stop failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "ENGINE_STOP_FAILED", "Failed to stop engine")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.engine.Status())
}

// EngineRun runs one cycle now and returns its report. The cycle runs with
// the server context so a dropped client does not abort it.
// @Summary Run engine cycle
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} engine.CycleReport
// @Failure 409 {object} respond.ErrorResponse
// @Router /api/v1/admin/engine/run [post]
func (h *Handler) EngineRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunNow(h.base)
	switch {
	case errors.Is(err, engine.ErrCycleBusy):
		respond.WriteError(w, http.StatusConflict, "CYCLE_BUSY", "An engine cycle is already running")
	case err != nil:
		h.logger.Error("Manual engine cycle failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "CYCLE_FAILED", "Engine cycle failed")
	default:
		respond.WriteJSONObject(w, http.StatusOK, report)
	}
}

type intervalRequest struct {
	Minutes *int `json:"minutes"`
}

// EngineSetInterval replaces the engine interval.
// @Summary Set engine interval
// @Tags admin
// @Accept json
// @Security BearerAuth
// @Success 200 {object} engine.Status
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/admin/engine/interval [put]
func (h *Handler) EngineSetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes == nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", `Expected {"minutes": <int>}`)
		return
	}
	st, err := h.engine.SetInterval(*req.Minutes)
	switch {
	case errors.Is(err, engine.ErrIntervalOutOfRange):
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INTERVAL_OUT_OF_RANGE", "Interval out of range", err.Error())
	case err != nil:
		h.logger.Error("Set engine interval failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERVAL_UPDATE_FAILED", "Failed to update interval")
	default:
		respond.WriteJSONObject(w, http.StatusOK, st)
	}
}

// --------------------------------------------------------------------------
// Scheduler
// --------------------------------------------------------------------------

// SchedulerStatus reports the notification scheduler state.
// @Summary Scheduler status
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} notifications.SchedulerStatus
// @Router /api/v1/admin/scheduler/status [get]
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.scheduler.Status())
}

// SchedulerStart starts both scan timers.
// @Summary Start scheduler
// @Tags admin
// @Security BearerAuth
// @Router /api/v1/admin/scheduler/start [post]
func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Start(h.base); err != nil {
		h.logger.Error("Scheduler start failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "SCHEDULER_START_FAILED", "Failed to start scheduler")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.scheduler.Status())
}

// SchedulerStop stops both scan timers.
// @Summary Stop scheduler
// @Tags admin
// @Security BearerAuth
// @Router /api/v1/admin/scheduler/stop [post]
func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(); err != nil {
		h.logger.Error("Scheduler stop failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "SCHEDULER_STOP_FAILED", "Failed to stop scheduler")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.scheduler.Status())
}

// ScanUrgent runs the urgent scan now.
// @Summary Run urgent scan
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} notifications.ScanResult
// @Router /api/v1/admin/scheduler/scan/urgent [post]
func (h *Handler) ScanUrgent(w http.ResponseWriter, r *http.Request) {
	res := h.scheduler.RunUrgentScan(h.base)
	h.cache.Delete(statsCacheKey)
	respond.WriteJSONObject(w, http.StatusOK, res)
}

// ScanDigest runs the digest scan now. Only users inside a digest window
// receive anything.
// @Summary Run digest scan
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} notifications.ScanResult
// @Router /api/v1/admin/scheduler/scan/digest [post]
func (h *Handler) ScanDigest(w http.ResponseWriter, r *http.Request) {
	res := h.scheduler.RunDigestScan(h.base)
	h.cache.Delete(statsCacheKey)
	respond.WriteJSONObject(w, http.StatusOK, res)
}

// --------------------------------------------------------------------------
// Notification stats
// --------------------------------------------------------------------------

// NotificationStats returns ledger counts by kind and status over the last
// 24 hours. Responses are cached briefly and support If-None-Match.
// @Summary Notification stats
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Success 304
// @Router /api/v1/admin/notifications/stats [get]
func (h *Handler) NotificationStats(w http.ResponseWriter, r *http.Request) {
	if data, etag, ok := h.cache.Get(statsCacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLStats, true)
		return
	}

	now := h.clock.Now().UTC()
	since := now.Add(-statsWindow)
	counts, err := h.stats.NotificationCounts(r.Context(), since)
	if err != nil {
		h.logger.Error("Notification stats query failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STATS_FAILED", "Failed to load notification stats")
		return
	}
	if counts == nil {
		counts = []store.NotificationCount{}
	}

	data, err := json.Marshal(map[string]any{
		"since":  since.Format(time.RFC3339),
		"until":  now.Format(time.RFC3339),
		"counts": counts,
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Failed to encode stats")
		return
	}
	etag := h.cache.Set(statsCacheKey, data, cache.TTLStats)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLStats, false)
}
