// Package assistant holds the per-user processors the autonomous engine runs
// each cycle: overdue-task reminders, the daily calendar agenda and the
// notification scan.
package assistant

import (
	"context"
	"time"

	"github.com/albapepper/execassist/internal/models"
)

// Message kinds sent by the processors.
const (
	KindTaskReminder = "task_reminder"
	KindDailyAgenda  = "daily_agenda"
)

const (
	reminderEvery  = 24 * time.Hour
	timeLayout     = "3:04 PM"
	dateLayout     = "Mon Jan 2"
	maxListedItems = 10
)

// Store is the storage the processors read and write.
type Store interface {
	GetTasksByUserID(ctx context.Context, userID int64) ([]models.Task, error)
	GetEventsByUserID(ctx context.Context, userID int64) ([]models.Event, error)

	GetLastTaskReminderDate(ctx context.Context, userID int64) (time.Time, bool, error)
	UpdateTaskReminderDate(ctx context.Context, userID int64, at time.Time) error
	GetLastDailySummaryDate(ctx context.Context, userID int64) (time.Time, bool, error)
	UpdateDailySummaryDate(ctx context.Context, userID int64, at time.Time) error
}

// Summarizer phrases a short paragraph from a prompt. *llm.Client satisfies
// it.
type Summarizer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
