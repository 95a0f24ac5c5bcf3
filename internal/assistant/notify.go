package assistant

import (
	"context"
	"fmt"

	"github.com/albapepper/execassist/internal/engine"
	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

// NotificationProcessor runs the urgent notification scan for one user as an
// engine step. Failed sends are reported as an error.
func NotificationProcessor(s *notifications.Scheduler) engine.Processor {
	return engine.ProcessorFunc(func(ctx context.Context, user models.User) error {
		res := s.ScanUser(ctx, user)
		if res.Failed > 0 {
			return fmt.Errorf("%d notifications failed for user %d", res.Failed, user.ID)
		}
		return nil
	})
}
