package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackorbit/orbitchat/pkg/api"
)

func fixedClient(url string) *Client {
	c := New(url, 2*time.Second)
	c.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 5_000_000, time.UTC) }
	return c
}

func TestChatPostsEnvelopeAndTrimsReply(t *testing.T) {
	var got api.Envelope
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("  \n**Hola** \n"))
	}))
	defer srv.Close()

	reply, err := fixedClient(srv.URL).Chat(context.Background(), "session_1_abc", "hi", false)
	require.NoError(t, err)
	assert.Equal(t, "**Hola**", reply)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, api.Envelope{
		Message:           "hi",
		SessionID:         "session_1_abc",
		Timestamp:         "2024-03-01T12:30:00.005Z",
		WhatsAppIsClicked: "no",
	}, got)
}

func TestSendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fixedClient(srv.URL).Chat(context.Background(), "s", "hi", true)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "Error: 503", err.Error())
}

func TestSendCapsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxReplyBytes+100)))
	}))
	defer srv.Close()

	reply, err := fixedClient(srv.URL).Chat(context.Background(), "s", "hi", false)
	require.NoError(t, err)
	assert.Len(t, reply, maxReplyBytes)
}

func TestTrackWhatsApp(t *testing.T) {
	var got api.Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := fixedClient(srv.URL).TrackWhatsApp(context.Background(), "s1", "https://wa.me/123")
	require.NoError(t, err)
	assert.Equal(t, api.WhatsAppClickedMessage, got.Message)
	assert.Equal(t, "yes", got.WhatsAppIsClicked)
	assert.Equal(t, "https://wa.me/123", got.WhatsAppURL)
	assert.Equal(t, "s1", got.SessionID)
}

func TestNotConfigured(t *testing.T) {
	_, err := New("", time.Second).Chat(context.Background(), "s", "hi", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := fixedClient(srv.URL).Chat(ctx, "s", "hi", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
