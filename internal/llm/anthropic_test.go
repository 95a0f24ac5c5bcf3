package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "summarize my day", req.Messages[0].Content)
		}

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":" Busy day. "},{"type":"text","text":"Two meetings."}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", "test-model", nil)
	got, err := c.Complete(context.Background(), "summarize my day")
	require.NoError(t, err)
	assert.Equal(t, "Busy day. Two meetings.", got)
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "sk-test", "", nil).Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_error")
}

func TestComplete_NotConfigured(t *testing.T) {
	var nilClient *Client
	_, err := nilClient.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New("", "", "", nil).Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, nilClient.IsConfigured())
}
