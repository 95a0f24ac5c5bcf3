// Package channel delivers rendered notifications over email (SendGrid) and
// Slack. Each channel implements notifications.Channel; Multi fans out to
// every channel a user can be reached on.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	httpTimeout = 20 * time.Second
	errBodyMax  = 200
)

// client is the rate-limited JSON POST helper shared by the channels.
type client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newClient(perSecond float64, burst int) client {
	return client{
		httpClient: &http.Client{Timeout: httpTimeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// postJSON sends body as JSON and returns the status code and response body.
func (c client) postJSON(ctx context.Context, url, bearer string, body any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
