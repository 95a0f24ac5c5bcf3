package notifications

import (
	"context"
	"time"

	"github.com/albapepper/execassist/internal/models"
)

// Store is the read side of application storage used by the scans.
type Store interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetTasksByUserID(ctx context.Context, userID int64) ([]models.Task, error)
	GetEventsByUserID(ctx context.Context, userID int64) ([]models.Event, error)
	GetLeadsByUserID(ctx context.Context, userID int64) ([]models.Lead, error)
	GetLead(ctx context.Context, id int64) (models.Lead, error)
	GetInvoicesByUserID(ctx context.Context, userID int64) ([]models.Invoice, error)
}

// Ledger persists notification attempts so throttling survives restarts.
// The in-memory DedupeStore is the fast path; the ledger is consulted on a
// miss and written after every send.
type Ledger interface {
	LastNotificationSent(ctx context.Context, key string) (time.Time, bool, error)
	RecordNotification(ctx context.Context, entry LedgerEntry) error
}
