package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/execassist/internal/config"
	"github.com/albapepper/execassist/internal/db"
	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

func TestStatementsRegistered(t *testing.T) {
	used := []string{
		"users_all", "user_by_id", "tasks_by_user", "events_by_user", "leads_by_user",
		"lead_by_id", "invoices_by_user", "task_reminder_date", "update_task_reminder_date",
		"daily_summary_date", "update_daily_summary_date", "notification_last_sent",
		"notification_record", "notification_purge", "notification_counts",
	}
	for _, name := range used {
		assert.Contains(t, db.Statements, name)
	}
}

// openTestStore migrates and connects to TEST_DATABASE_URL, skipping the
// test when it is unset. Tables are truncated first.
func openTestStore(t *testing.T) (*Store, *db.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, conn))
	_, err = conn.Exec(ctx, "TRUNCATE users, tasks, events, leads, invoices, notification_log RESTART IDENTITY CASCADE")
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	pool, err := db.New(ctx, &config.Config{
		DatabaseURL:    url,
		DBPoolMinConns: 1,
		DBPoolMaxConns: 4,
		DBPoolMaxLife:  time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return New(pool.Pool), pool
}

func TestStore_Postgres(t *testing.T) {
	s, pool := openTestStore(t)
	ctx := context.Background()

	var userID int64
	err := pool.QueryRow(ctx, `INSERT INTO users (email, name, timezone, preferences)
		VALUES ('ceo@example.com', 'Ceo', 'Europe/Berlin', '{"slackNotifications": true, "slackUserId": "U1"}')
		RETURNING id`).Scan(&userID)
	require.NoError(t, err)

	due := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	_, err = pool.Exec(ctx, `INSERT INTO tasks (user_id, title, due_date, priority) VALUES ($1, 'Sign', $2, 'high'), ($1, 'Someday', NULL, 'low')`, userID, due)
	require.NoError(t, err)

	var leadID int64
	err = pool.QueryRow(ctx, `INSERT INTO leads (user_id, name, priority, value) VALUES ($1, 'Acme', 'high', 25000) RETURNING id`, userID).Scan(&leadID)
	require.NoError(t, err)

	t.Run("users", func(t *testing.T) {
		users, err := s.GetAllUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		u := users[0]
		assert.Equal(t, "Europe/Berlin", u.Timezone)
		assert.Equal(t, models.RoleUser, u.Role)
		assert.True(t, u.Preferences.SlackNotifications)
		assert.True(t, u.Preferences.EmailNotifications, "defaults survive partial preferences")

		_, err = s.GetUser(ctx, userID+100)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tasks and leads", func(t *testing.T) {
		tasks, err := s.GetTasksByUserID(ctx, userID)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		require.NotNil(t, tasks[0].DueDate)
		assert.True(t, due.Equal(*tasks[0].DueDate))
		assert.Nil(t, tasks[1].DueDate)

		lead, err := s.GetLead(ctx, leadID)
		require.NoError(t, err)
		assert.Equal(t, 25000.0, lead.Value)
	})

	t.Run("reminder dates", func(t *testing.T) {
		_, ok, err := s.GetLastTaskReminderDate(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok)

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.UpdateTaskReminderDate(ctx, userID, at))
		got, ok, err := s.GetLastTaskReminderDate(ctx, userID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, at.Equal(got))

		assert.ErrorIs(t, s.UpdateDailySummaryDate(ctx, userID+100, at), ErrNotFound)
	})

	t.Run("ledger", func(t *testing.T) {
		_, ok, err := s.LastNotificationSent(ctx, "task-1-urgent")
		require.NoError(t, err)
		assert.False(t, ok)

		old := time.Now().Add(-40 * 24 * time.Hour).UTC().Truncate(time.Second)
		recent := time.Now().UTC().Truncate(time.Second)
		for _, at := range []time.Time{old, recent} {
			require.NoError(t, s.RecordNotification(ctx, notifications.LedgerEntry{
				Key: "task-1-urgent", Kind: notifications.KindTask, UserID: userID, EntityID: 1, Status: "sent", SentAt: at,
			}))
		}

		last, ok, err := s.LastNotificationSent(ctx, "task-1-urgent")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, recent.Equal(last))

		counts, err := s.NotificationCounts(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []NotificationCount{{Kind: "task", Status: "sent", Count: 1}}, counts)

		n, err := s.PurgeNotificationLog(ctx, time.Now().Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
