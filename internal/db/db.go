// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/execassist/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Statements maps prepared statement names to SQL. Exported so the store
// tests can check every name they use is registered.
var Statements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// Users
	"users_all": `SELECT id, email, COALESCE(name, ''), role, COALESCE(timezone, ''), preferences
		FROM users ORDER BY id`,
	"user_by_id": `SELECT id, email, COALESCE(name, ''), role, COALESCE(timezone, ''), preferences
		FROM users WHERE id = $1`,

	// Entities per user
	"tasks_by_user": `SELECT id, user_id, title, COALESCE(description, ''), due_date, priority, completed
		FROM tasks WHERE user_id = $1 ORDER BY due_date NULLS LAST, id`,
	"events_by_user": `SELECT id, user_id, title, start_time, end_time, COALESCE(location, ''), COALESCE(meeting_url, '')
		FROM events WHERE user_id = $1 AND end_time > NOW() - INTERVAL '1 day' ORDER BY start_time`,
	"leads_by_user": `SELECT id, user_id, name, COALESCE(company, ''), COALESCE(email, ''), priority, value::float8, created_at
		FROM leads WHERE user_id = $1 AND created_at > NOW() - INTERVAL '2 days' ORDER BY created_at DESC`,
	"lead_by_id": `SELECT id, user_id, name, COALESCE(company, ''), COALESCE(email, ''), priority, value::float8, created_at
		FROM leads WHERE id = $1`,
	"invoices_by_user": `SELECT id, user_id, number, amount::float8, due_date, status
		FROM invoices WHERE user_id = $1 AND status <> 'paid' ORDER BY due_date NULLS LAST`,

	// Assistant throttles
	"task_reminder_date":        "SELECT last_task_reminder_at FROM users WHERE id = $1",
	"update_task_reminder_date": "UPDATE users SET last_task_reminder_at = $2 WHERE id = $1",
	"daily_summary_date":        "SELECT last_daily_summary_at FROM users WHERE id = $1",
	"update_daily_summary_date": "UPDATE users SET last_daily_summary_at = $2 WHERE id = $1",

	// Notification ledger
	"notification_last_sent": "SELECT MAX(sent_at) FROM notification_log WHERE key = $1",
	"notification_record": `INSERT INTO notification_log (key, kind, user_id, entity_id, status, sent_at)
		VALUES ($1, $2, $3, NULLIF($4::bigint, 0), $5, $6)`,
	"notification_purge": "DELETE FROM notification_log WHERE sent_at < $1",
	"notification_counts": `SELECT kind, status, COUNT(*) FROM notification_log
		WHERE sent_at >= $1 GROUP BY kind, status ORDER BY kind, status`,
}

// registerPreparedStatements registers all statements the API, scheduler and
// engine use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
