package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

const (
	slackBaseURL = "https://slack.com/api"
	// chat.postMessage is a tier "special" method: about one message per
	// second per channel.
	slackPerSecond = 1
	slackBurst     = 5
)

// SlackError is an API-level failure reported with ok=false.
type SlackError struct {
	Code    string
	Message string
}

func (e *SlackError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("slack: %s: %s", e.Code, e.Message)
	}
	return "slack: " + e.Code
}

// Slack posts notifications with chat.postMessage using a bot token.
type Slack struct {
	client
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewSlack creates a Slack channel. An empty baseURL uses the public API; an
// empty token leaves the channel unconfigured.
func NewSlack(baseURL, token string, logger *slog.Logger) *Slack {
	if baseURL == "" {
		baseURL = slackBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{
		client:  newClient(slackPerSecond, slackBurst),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// IsConfigured reports whether a bot token is set.
func (s *Slack) IsConfigured() bool { return s.token != "" }

// Name implements notifications.Channel.
func (s *Slack) Name() string { return "slack" }

// Deliverable implements notifications.Channel. A user is reachable when
// Slack notifications are on and a user or channel id is connected.
func (s *Slack) Deliverable(u models.User) bool {
	return s.IsConfigured() && u.Preferences.SlackNotifications && target(u) != ""
}

// target prefers the configured channel over a direct message.
func target(u models.User) string {
	if u.Preferences.SlackChannelID != "" {
		return u.Preferences.SlackChannelID
	}
	return u.Preferences.SlackUserID
}

type slackPost struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	Mrkdwn  bool   `json:"mrkdwn"`
}

type slackResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Warning string `json:"warning"`
}

// Send implements notifications.Channel.
func (s *Slack) Send(ctx context.Context, u models.User, msg notifications.Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	channel := target(u)
	if channel == "" {
		return &SlackError{Code: "channel_not_found", Message: "user has no Slack channel or user id"}
	}

	post := slackPost{
		Channel: channel,
		Text:    "*" + msg.Subject + "*\n" + msg.Text,
		Mrkdwn:  true,
	}
	status, body, err := s.postJSON(ctx, s.baseURL+"/chat.postMessage", s.token, post)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d: %s", status, truncate(body, errBodyMax))
	}

	var resp slackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("slack: decode response: %w", err)
	}
	if !resp.OK {
		return &SlackError{Code: resp.Error, Message: resp.Warning}
	}
	s.logger.Debug("Slack message sent", "user_id", u.ID, "channel", channel)
	return nil
}
