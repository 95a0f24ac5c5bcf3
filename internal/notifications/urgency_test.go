package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/albapepper/execassist/internal/models"
)

func TestTaskUrgent(t *testing.T) {
	tests := []struct {
		name string
		task models.Task
		want bool
	}{
		{"high priority without due date", models.Task{Priority: models.PriorityHigh}, true},
		{"high priority overdue", models.Task{Priority: models.PriorityHigh, DueDate: ptr(t0.Add(-time.Hour))}, true},
		{"completed high priority", models.Task{Priority: models.PriorityHigh, Completed: true}, false},
		{"no due date", models.Task{Priority: models.PriorityLow}, false},
		{"due in 30 minutes", models.Task{Priority: models.PriorityLow, DueDate: ptr(t0.Add(30 * time.Minute))}, true},
		{"due in 30m59s", models.Task{Priority: models.PriorityLow, DueDate: ptr(t0.Add(30*time.Minute + 59*time.Second))}, true},
		{"due in 31 minutes", models.Task{Priority: models.PriorityLow, DueDate: ptr(t0.Add(31 * time.Minute))}, false},
		{"high priority due in 31 minutes", models.Task{Priority: models.PriorityHigh, DueDate: ptr(t0.Add(31 * time.Minute))}, true},
		{"due now", models.Task{Priority: models.PriorityMedium, DueDate: ptr(t0)}, true},
		{"one second overdue", models.Task{Priority: models.PriorityMedium, DueDate: ptr(t0.Add(-time.Second))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TaskUrgent(tt.task, t0))
		})
	}
}

func TestMeetingImminent(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"starts now", t0, true},
		{"in 15 minutes", t0.Add(15 * time.Minute), true},
		{"in 16 minutes", t0.Add(16 * time.Minute), false},
		{"started a second ago", t0.Add(-time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MeetingImminent(models.Event{StartTime: tt.start}, t0))
		})
	}
}

func TestLeadHighPriority(t *testing.T) {
	tests := []struct {
		name string
		lead models.Lead
		want bool
	}{
		{"high priority fresh", models.Lead{Priority: models.PriorityHigh, CreatedAt: t0.Add(-time.Hour)}, true},
		{"valuable fresh", models.Lead{Priority: models.PriorityLow, Value: 10001, CreatedAt: t0}, true},
		{"value at threshold", models.Lead{Priority: models.PriorityLow, Value: 10000, CreatedAt: t0}, false},
		{"exactly two hours old", models.Lead{Priority: models.PriorityHigh, CreatedAt: t0.Add(-2 * time.Hour)}, true},
		{"too old", models.Lead{Priority: models.PriorityHigh, CreatedAt: t0.Add(-2*time.Hour - time.Second)}, false},
		{"three hours old", models.Lead{Priority: models.PriorityHigh, Value: 50000, CreatedAt: t0.Add(-3 * time.Hour)}, false},
		{"created in the future", models.Lead{Priority: models.PriorityHigh, CreatedAt: t0.Add(5 * time.Minute)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LeadHighPriority(tt.lead, t0))
		})
	}
}

func TestMinutesUntil(t *testing.T) {
	assert.Equal(t, 0, minutesUntil(t0.Add(59*time.Second), t0))
	assert.Equal(t, -1, minutesUntil(t0.Add(-time.Second), t0))
	assert.Equal(t, -1, minutesUntil(t0.Add(-time.Minute), t0))
	assert.Equal(t, -2, minutesUntil(t0.Add(-61*time.Second), t0))
}
