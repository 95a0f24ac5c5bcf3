package notifications

import (
	"context"

	"github.com/albapepper/execassist/internal/models"
)

// Channel delivers a rendered message to a user.
type Channel interface {
	// Name identifies the channel in logs.
	Name() string
	// Deliverable reports whether the user can be reached on this channel
	// at all (address present, channel connected, preference enabled).
	Deliverable(user models.User) bool
	// Send delivers msg. A nil error means the message was accepted.
	Send(ctx context.Context, user models.User, msg Message) error
}
