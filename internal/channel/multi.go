package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

// Multi sends to every channel a user is reachable on. A send succeeds when
// at least one channel accepted the message.
type Multi struct {
	channels []notifications.Channel
}

// NewMulti combines channels. Nil entries are ignored.
func NewMulti(channels ...notifications.Channel) *Multi {
	m := &Multi{}
	for _, c := range channels {
		if c != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

// Name implements notifications.Channel.
func (m *Multi) Name() string { return "multi" }

// Deliverable reports whether any channel can reach u.
func (m *Multi) Deliverable(u models.User) bool {
	for _, c := range m.channels {
		if c.Deliverable(u) {
			return true
		}
	}
	return false
}

// Send implements notifications.Channel.
func (m *Multi) Send(ctx context.Context, u models.User, msg notifications.Message) error {
	var (
		errs      []error
		delivered int
	)
	for _, c := range m.channels {
		if !c.Deliverable(u) {
			continue
		}
		if err := c.Send(ctx, u, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return nil
	}
	if len(errs) == 0 {
		return fmt.Errorf("user %d has no deliverable channel", u.ID)
	}
	return errors.Join(errs...)
}
