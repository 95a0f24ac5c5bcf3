// Package maintenance runs periodic background tasks as Go tickers. All
// scheduled housekeeping is driven from Go since the API is already a
// persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Purger deletes notification ledger rows older than a cutoff.
type Purger interface {
	PurgeNotificationLog(ctx context.Context, before time.Time) (int64, error)
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	LedgerPurgeInterval time.Duration // Old notification_log rows
	LedgerRetention     time.Duration
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		LedgerPurgeInterval: 6 * time.Hour,
		LedgerRetention:     30 * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, purger Purger, cfg Config, clock clockwork.Clock, logger *slog.Logger) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger.Info("Maintenance tickers started",
		"ledger_purge", cfg.LedgerPurgeInterval,
		"ledger_retention", cfg.LedgerRetention)

	// Purge: drop ledger rows past the retention window
	if cfg.LedgerPurgeInterval > 0 && cfg.LedgerRetention > 0 {
		t := clock.NewTicker(cfg.LedgerPurgeInterval)
		defer t.Stop()
		go runLoop(ctx, t.Chan(), "ledger_purge", func() {
			PurgeLedger(ctx, purger, clock.Now().Add(-cfg.LedgerRetention), logger)
		})
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// PurgeLedger removes ledger rows recorded before cutoff. Rows inside the
// longest cooldown are never at risk: the retention window is days long.
func PurgeLedger(ctx context.Context, purger Purger, cutoff time.Time, logger *slog.Logger) int64 {
	start := time.Now()
	n, err := purger.PurgeNotificationLog(ctx, cutoff)
	dur := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Warn("Ledger purge failed", "duration", dur, "error", err)
		return 0
	}
	if n > 0 {
		logger.Info("Ledger purge: removed old notification rows", "count", n, "duration", dur)
	}
	return n
}
