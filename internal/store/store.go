// Package store is the Postgres storage adapter. It reads users and their
// tasks, events, leads and invoices, and persists the notification ledger and
// the assistant's reminder dates. All queries run as prepared statements
// registered by internal/db.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Querier is satisfied by *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements notifications.Store, notifications.Ledger and
// assistant.Store on Postgres.
type Store struct {
	q Querier
}

// New wraps a pool whose connections have the prepared statements.
func New(q Querier) *Store {
	return &Store{q: q}
}

// Migrate applies the embedded schema. Run it on a plain connection: the pool
// prepares statements on connect, which fails until the tables exist.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

// GetAllUsers returns every user ordered by id.
func (s *Store) GetAllUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.q.Query(ctx, "users_all")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

// GetUser returns one user or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	rows, err := s.q.Query(ctx, "user_by_id", id)
	if err != nil {
		return models.User{}, fmt.Errorf("query user %d: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user %d: %w", id, err)
	}
	return u, nil
}

func scanUser(row pgx.CollectableRow) (models.User, error) {
	var (
		u     models.User
		prefs []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Timezone, &prefs); err != nil {
		return models.User{}, err
	}
	u.Preferences = models.DefaultPreferences()
	if len(prefs) > 0 {
		// Stored keys override the defaults; missing keys keep them.
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return models.User{}, fmt.Errorf("user %d preferences: %w", u.ID, err)
		}
	}
	return u, nil
}

// --------------------------------------------------------------------------
// Tasks, events, leads, invoices
// --------------------------------------------------------------------------

// GetTasksByUserID returns the user's tasks, soonest due first.
func (s *Store) GetTasksByUserID(ctx context.Context, userID int64) ([]models.Task, error) {
	rows, err := s.q.Query(ctx, "tasks_by_user", userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Task, error) {
		var t models.Task
		err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Completed)
		return t, err
	})
}

// GetEventsByUserID returns events that ended less than a day ago or later.
func (s *Store) GetEventsByUserID(ctx context.Context, userID int64) ([]models.Event, error) {
	rows, err := s.q.Query(ctx, "events_by_user", userID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Event, error) {
		var e models.Event
		err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.StartTime, &e.EndTime, &e.Location, &e.MeetingURL)
		return e, err
	})
}

// GetLeadsByUserID returns leads created in the last two days.
func (s *Store) GetLeadsByUserID(ctx context.Context, userID int64) ([]models.Lead, error) {
	rows, err := s.q.Query(ctx, "leads_by_user", userID)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	return pgx.CollectRows(rows, scanLead)
}

// GetLead returns one lead or ErrNotFound.
func (s *Store) GetLead(ctx context.Context, id int64) (models.Lead, error) {
	rows, err := s.q.Query(ctx, "lead_by_id", id)
	if err != nil {
		return models.Lead{}, fmt.Errorf("query lead %d: %w", id, err)
	}
	l, err := pgx.CollectExactlyOneRow(rows, scanLead)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Lead{}, fmt.Errorf("lead %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Lead{}, fmt.Errorf("scan lead %d: %w", id, err)
	}
	return l, nil
}

func scanLead(row pgx.CollectableRow) (models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Company, &l.Email, &l.Priority, &l.Value, &l.CreatedAt)
	return l, err
}

// GetInvoicesByUserID returns the user's unpaid invoices.
func (s *Store) GetInvoicesByUserID(ctx context.Context, userID int64) ([]models.Invoice, error) {
	rows, err := s.q.Query(ctx, "invoices_by_user", userID)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Invoice, error) {
		var inv models.Invoice
		err := row.Scan(&inv.ID, &inv.UserID, &inv.Number, &inv.Amount, &inv.DueDate, &inv.Status)
		return inv, err
	})
}

// --------------------------------------------------------------------------
// Assistant throttles
// --------------------------------------------------------------------------

// GetLastTaskReminderDate returns when the user last got an overdue reminder.
func (s *Store) GetLastTaskReminderDate(ctx context.Context, userID int64) (time.Time, bool, error) {
	return s.optionalTime(ctx, "task_reminder_date", userID)
}

// UpdateTaskReminderDate stores the overdue reminder time.
func (s *Store) UpdateTaskReminderDate(ctx context.Context, userID int64, at time.Time) error {
	return s.execOne(ctx, "update_task_reminder_date", userID, at)
}

// GetLastDailySummaryDate returns when the user last got a daily agenda.
func (s *Store) GetLastDailySummaryDate(ctx context.Context, userID int64) (time.Time, bool, error) {
	return s.optionalTime(ctx, "daily_summary_date", userID)
}

// UpdateDailySummaryDate stores the daily agenda time.
func (s *Store) UpdateDailySummaryDate(ctx context.Context, userID int64, at time.Time) error {
	return s.execOne(ctx, "update_daily_summary_date", userID, at)
}

func (s *Store) optionalTime(ctx context.Context, stmt string, args ...any) (time.Time, bool, error) {
	var at *time.Time
	err := s.q.QueryRow(ctx, stmt, args...).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, ErrNotFound
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", stmt, err)
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return *at, true, nil
}

func (s *Store) execOne(ctx context.Context, stmt string, args ...any) error {
	tag, err := s.q.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", stmt, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", stmt, ErrNotFound)
	}
	return nil
}

// --------------------------------------------------------------------------
// Notification ledger
// --------------------------------------------------------------------------

// LastNotificationSent returns the most recent ledger time for key.
func (s *Store) LastNotificationSent(ctx context.Context, key string) (time.Time, bool, error) {
	at, ok, err := s.optionalTime(ctx, "notification_last_sent", key)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	return at, ok, err
}

// RecordNotification appends a ledger row.
func (s *Store) RecordNotification(ctx context.Context, e notifications.LedgerEntry) error {
	_, err := s.q.Exec(ctx, "notification_record", e.Key, e.Kind, e.UserID, e.EntityID, e.Status, e.SentAt)
	if err != nil {
		return fmt.Errorf("record notification %s: %w", e.Key, err)
	}
	return nil
}

// PurgeNotificationLog deletes ledger rows older than before and returns the
// number removed.
func (s *Store) PurgeNotificationLog(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, "notification_purge", before)
	if err != nil {
		return 0, fmt.Errorf("purge notification log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// NotificationCount is one row of NotificationCounts.
type NotificationCount struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// NotificationCounts groups ledger rows since the given time by kind and
// status.
func (s *Store) NotificationCounts(ctx context.Context, since time.Time) ([]NotificationCount, error) {
	rows, err := s.q.Query(ctx, "notification_counts", since)
	if err != nil {
		return nil, fmt.Errorf("query notification counts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[NotificationCount])
}
