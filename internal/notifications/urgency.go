package notifications

import (
	"fmt"
	"time"

	"github.com/albapepper/execassist/internal/models"
)

// TaskUrgent reports whether a task warrants an immediate notification:
// high priority, or due within the next 30 minutes. Overdue tasks only
// qualify through priority; completed tasks never do.
func TaskUrgent(task models.Task, now time.Time) bool {
	if task.Completed {
		return false
	}
	if task.Priority == models.PriorityHigh {
		return true
	}
	if task.DueDate == nil {
		return false
	}
	mins := minutesUntil(*task.DueDate, now)
	return mins >= 0 && mins <= taskDueWindowMinutes
}

// MeetingImminent reports whether a meeting starts within the next 15
// minutes. Meetings already under way are not imminent.
func MeetingImminent(event models.Event, now time.Time) bool {
	mins := minutesUntil(event.StartTime, now)
	return mins >= 0 && mins <= meetingStartWindowMinutes
}

// LeadHighPriority reports whether a lead is both important (high priority
// or valued above 10,000) and recent (created at most two hours ago).
// A creation time ahead of now is clock skew and never counts as recent.
func LeadHighPriority(lead models.Lead, now time.Time) bool {
	important := lead.Priority == models.PriorityHigh || lead.Value > leadHighValueThreshold
	if !important {
		return false
	}
	age := now.Sub(lead.CreatedAt)
	return age >= 0 && age <= leadRecencyWindow
}

// minutesUntil is the whole number of minutes from now to t, rounded down,
// so anything in the past is negative.
func minutesUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d < 0 {
		return int((d - time.Minute + 1) / time.Minute)
	}
	return int(d / time.Minute)
}

func taskKey(id int64) string    { return fmt.Sprintf("task-%d-urgent", id) }
func meetingKey(id int64) string { return fmt.Sprintf("meeting-%d-imminent", id) }
func leadKey(id int64) string    { return fmt.Sprintf("lead-%d-highpriority", id) }
