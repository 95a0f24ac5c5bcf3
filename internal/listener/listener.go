// Package listener provides a Postgres LISTEN/NOTIFY consumer for real-time
// lead events. It holds a dedicated pgx connection (not from the pool)
// listening on the `lead_created` channel.
//
// When a lead row is inserted, the Postgres trigger fires pg_notify and this
// consumer hands the lead to the high-priority lead dispatcher, so important
// leads do not wait for the next urgent scan.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	channel          = "lead_created"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	handleTimeout    = 30 * time.Second
)

// LeadEvent is the JSON payload from pg_notify('lead_created', ...).
type LeadEvent struct {
	LeadID int64 `json:"lead_id"`
	UserID int64 `json:"user_id"`
}

// LeadNotifier dispatches a lead notification. *notifications.Dispatcher
// satisfies it.
type LeadNotifier interface {
	NotifyLeadByID(ctx context.Context, userID, leadID int64) (bool, error)
}

// Start opens a dedicated connection and listens on the lead_created channel.
// It reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, notifier LeadNotifier, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, notifier, logger)
		if ctx.Err() != nil {
			logger.Info("Lead listener stopped (context cancelled)")
			return
		}

		logger.Error("Lead listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, notifier LeadNotifier, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Lead listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := ParseLeadEvent(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse lead event",
				"payload", notification.Payload, "error", err)
			continue
		}

		// Process asynchronously to avoid blocking the listener
		go HandleLead(ctx, notifier, event, logger)
	}
}

// ParseLeadEvent decodes and validates a notification payload.
func ParseLeadEvent(payload string) (LeadEvent, error) {
	var event LeadEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return LeadEvent{}, err
	}
	if event.LeadID <= 0 || event.UserID <= 0 {
		return LeadEvent{}, fmt.Errorf("lead_id and user_id are required")
	}
	return event, nil
}

// HandleLead dispatches the lead notification for one event.
func HandleLead(ctx context.Context, notifier LeadNotifier, event LeadEvent, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	sent, err := notifier.NotifyLeadByID(ctx, event.UserID, event.LeadID)
	if err != nil {
		logger.Warn("Failed to handle lead event",
			"lead_id", event.LeadID, "user_id", event.UserID, "error", err)
		return
	}
	logger.Debug("Lead event handled",
		"lead_id", event.LeadID, "user_id", event.UserID, "notified", sent)
}
