package assistant

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

// TaskManager reminds users of overdue tasks at most once a day.
type TaskManager struct {
	store   Store
	channel notifications.Channel
	clock   clockwork.Clock
	loc     *time.Location
	logger  *slog.Logger
}

// NewTaskManager creates a TaskManager. loc is the fallback timezone for
// users without one.
func NewTaskManager(store Store, channel notifications.Channel, clock clockwork.Clock, loc *time.Location, logger *slog.Logger) *TaskManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskManager{store: store, channel: channel, clock: clock, loc: loc, logger: logger}
}

// Process sends the overdue reminder when one is due. The reminder date only
// advances after a successful send.
func (m *TaskManager) Process(ctx context.Context, user models.User) error {
	if !m.channel.Deliverable(user) {
		return nil
	}
	now := m.clock.Now()

	last, ok, err := m.store.GetLastTaskReminderDate(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("get task reminder date: %w", err)
	}
	if ok && now.Sub(last) < reminderEvery {
		return nil
	}

	tasks, err := m.store.GetTasksByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	overdue := overdueTasks(tasks, now)
	if len(overdue) == 0 {
		return nil
	}

	msg := renderReminder(overdue, now.In(user.Location(m.loc)))
	if err := m.channel.Send(ctx, user, msg); err != nil {
		return fmt.Errorf("send task reminder: %w", err)
	}
	if err := m.store.UpdateTaskReminderDate(ctx, user.ID, now); err != nil {
		return fmt.Errorf("update task reminder date: %w", err)
	}
	m.logger.Info("Task reminder sent", "user_id", user.ID, "overdue", len(overdue))
	return nil
}

// overdueTasks returns open tasks due before now, oldest first.
func overdueTasks(tasks []models.Task, now time.Time) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if !t.Completed && t.DueDate != nil && t.DueDate.Before(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out
}

func renderReminder(overdue []models.Task, local time.Time) notifications.Message {
	noun := "task"
	if len(overdue) > 1 {
		noun = "tasks"
	}
	subject := fmt.Sprintf("You have %d overdue %s", len(overdue), noun)

	var h, t strings.Builder
	h.WriteString("<ul>\n")
	for i, task := range overdue {
		if i == maxListedItems {
			fmt.Fprintf(&h, "<li>and %d more</li>\n", len(overdue)-i)
			fmt.Fprintf(&t, "- and %d more\n", len(overdue)-i)
			break
		}
		line := fmt.Sprintf("%s (due %s)", task.Title, task.DueDate.In(local.Location()).Format(dateLayout))
		if task.Priority == models.PriorityHigh {
			line += " [high]"
		}
		fmt.Fprintf(&h, "<li>%s</li>\n", html.EscapeString(line))
		fmt.Fprintf(&t, "- %s\n", line)
	}
	h.WriteString("</ul>\n")

	return notifications.Message{Kind: KindTaskReminder, Subject: subject, HTML: h.String(), Text: t.String()}
}
