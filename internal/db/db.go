package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blackorbit/orbitchat/pkg/api"
)

// Store persists chat transcripts and WhatsApp click state per session.
type Store interface {
	// AppendMessage stores m, filling ID and CreatedAt when empty. A message
	// identical to the session's latest one is not stored twice; the existing
	// row is returned instead.
	AppendMessage(ctx context.Context, m api.Message) (api.Message, error)
	// ListMessages returns the newest limit messages of a session, oldest
	// first. limit <= 0 returns all of them.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]api.Message, error)
	RecordClick(ctx context.Context, c api.Click) error
	Session(ctx context.Context, sessionID string) (api.Session, error)
	Close() error
}

var ErrNotFound = errors.New("not found")

// Open returns a Store for sqlite://path or mem:// URLs.
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return openSQLite(ctx, url)
	case strings.HasPrefix(url, "mem://"):
		return newMemStore(), nil
	default:
		return nil, fmt.Errorf("unsupported db url %q", url)
	}
}
