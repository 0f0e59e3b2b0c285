// Package webhook posts chat envelopes to the bot backend and reads back its
// plain-text replies.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blackorbit/orbitchat/pkg/api"
)

const maxReplyBytes = 1 << 20

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("webhook url not configured")

// StatusError is returned for non-2xx webhook responses. Its message is the
// text the widget shows in place of a reply.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("Error: %d", e.Code) }

// Client talks to one webhook endpoint.
type Client struct {
	URL  string
	HTTP *http.Client
	// Now stamps envelopes; tests replace it.
	Now func() time.Time
}

func New(url string, timeout time.Duration) *Client {
	return &Client{
		URL:  url,
		HTTP: &http.Client{Timeout: timeout},
		Now:  time.Now,
	}
}

// Send posts env and returns the trimmed reply body.
func (c *Client) Send(ctx context.Context, env api.Envelope) (string, error) {
	body, err := c.post(ctx, env)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Chat stamps a user message into an envelope and sends it.
func (c *Client) Chat(ctx context.Context, sessionID, message string, clicked bool) (string, error) {
	return c.Send(ctx, api.NewEnvelope(sessionID, message, clicked, c.now()))
}

// TrackWhatsApp reports a followed WhatsApp link. The reply body is ignored.
func (c *Client) TrackWhatsApp(ctx context.Context, sessionID, url string) error {
	env := api.NewEnvelope(sessionID, api.WhatsAppClickedMessage, true, c.now())
	env.WhatsAppURL = url
	_, err := c.post(ctx, env)
	return err
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Client) post(ctx context.Context, env api.Envelope) ([]byte, error) {
	if c.URL == "" {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if err != nil {
		return nil, fmt.Errorf("webhook: read reply: %w", err)
	}
	return body, nil
}
