package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Notification("task", "sent")
		m.Scan("urgent", time.Second)
		m.EngineCycle(time.Second, 2)
		m.EngineInterval(time.Minute)
		m.DedupeEntries(3)
	})
}

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Notification("task", "sent")
	m.Notification("task", "sent")
	m.Notification("lead", "suppressed")
	m.EngineInterval(15 * time.Minute)
	m.DedupeEntries(7)
	m.EngineCycle(2*time.Second, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("task", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("lead", "suppressed")))
	assert.Equal(t, 900.0, testutil.ToFloat64(m.engineInterval))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.dedupeEntries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cycleErrors))
}
