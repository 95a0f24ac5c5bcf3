package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

const (
	sendGridBaseURL   = "https://api.sendgrid.com"
	sendGridPerSecond = 10
)

// ErrNotConfigured is returned by channels missing their credentials.
var ErrNotConfigured = errors.New("channel not configured")

// Email sends notifications through the SendGrid v3 mail API.
type Email struct {
	client
	baseURL string
	apiKey  string
	from    string
	logger  *slog.Logger
}

// NewEmail creates a SendGrid channel. An empty baseURL uses the public API;
// an empty apiKey leaves the channel unconfigured.
func NewEmail(baseURL, apiKey, from string, logger *slog.Logger) *Email {
	if baseURL == "" {
		baseURL = sendGridBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Email{
		client:  newClient(sendGridPerSecond, sendGridPerSecond),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		logger:  logger,
	}
}

// IsConfigured reports whether an API key and sender are set.
func (e *Email) IsConfigured() bool {
	return e.apiKey != "" && e.from != ""
}

// Name implements notifications.Channel.
func (e *Email) Name() string { return "email" }

// Deliverable implements notifications.Channel.
func (e *Email) Deliverable(u models.User) bool {
	return e.IsConfigured() && u.Email != "" && u.Preferences.EmailNotifications
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// Send implements notifications.Channel.
func (e *Email) Send(ctx context.Context, u models.User, msg notifications.Message) error {
	if !e.IsConfigured() {
		return ErrNotConfigured
	}

	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{
			To: []sendGridAddress{{Email: u.Email, Name: u.Name}},
		}},
		From:    sendGridAddress{Email: e.from, Name: "Executive Assistant"},
		Subject: msg.Subject,
	}
	// SendGrid requires text/plain before text/html.
	if msg.Text != "" {
		mail.Content = append(mail.Content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		mail.Content = append(mail.Content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}

	status, body, err := e.postJSON(ctx, e.baseURL+"/v3/mail/send", e.apiKey, mail)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return fmt.Errorf("sendgrid returned %d: %s", status, truncate(body, errBodyMax))
	}
	e.logger.Debug("Email sent", "user_id", u.ID, "subject", msg.Subject)
	return nil
}
