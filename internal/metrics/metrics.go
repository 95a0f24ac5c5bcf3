// Package metrics exposes Prometheus instrumentation for the scheduler and
// the autonomous engine. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application collectors.
type Metrics struct {
	notifications  *prometheus.CounterVec
	scanDuration   *prometheus.HistogramVec
	cycleDuration  prometheus.Histogram
	cycleErrors    prometheus.Counter
	engineInterval prometheus.Gauge
	dedupeEntries  prometheus.Gauge
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "execassist_notifications_total",
			Help: "Notification dispatch outcomes by kind",
		}, []string{"kind", "outcome"}),

		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "execassist_scan_duration_seconds",
			Help:    "Duration of urgent and digest scans",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"scan"}),

		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "execassist_engine_cycle_duration_seconds",
			Help:    "Duration of autonomous engine cycles",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}),

		cycleErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "execassist_engine_processor_errors_total",
			Help: "Per-user processor failures inside engine cycles",
		}),

		engineInterval: f.NewGauge(prometheus.GaugeOpts{
			Name: "execassist_engine_interval_seconds",
			Help: "Current autonomous engine polling interval",
		}),

		dedupeEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "execassist_dedupe_entries",
			Help: "Keys held by the in-memory notification dedupe store",
		}),
	}
}

// Notification counts one dispatch outcome.
func (m *Metrics) Notification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

// Scan records how long a scan took.
func (m *Metrics) Scan(scan string, d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.WithLabelValues(scan).Observe(d.Seconds())
}

// EngineCycle records one engine cycle and its per-user errors.
func (m *Metrics) EngineCycle(d time.Duration, errors int) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
	m.cycleErrors.Add(float64(errors))
}

// EngineInterval publishes the engine's current interval.
func (m *Metrics) EngineInterval(d time.Duration) {
	if m == nil {
		return
	}
	m.engineInterval.Set(d.Seconds())
}

// DedupeEntries publishes the dedupe store size.
func (m *Metrics) DedupeEntries(n int) {
	if m == nil {
		return
	}
	m.dedupeEntries.Set(float64(n))
}
