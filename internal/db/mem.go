package db

import (
	"context"
	"sync"
	"time"

	"github.com/blackorbit/orbitchat/pkg/api"
)

type memSession struct {
	info     api.Session
	messages []api.Message
	hashes   []string
	clicks   []api.Click
}

type memStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*memSession)}
}

// touch returns the session, creating it on first use. Callers hold mu.
func (m *memStore) touch(id string, at time.Time) *memSession {
	s, ok := m.sessions[id]
	if !ok {
		s = &memSession{info: api.Session{ID: id, CreatedAt: at}}
		m.sessions[id] = s
	}
	s.info.UpdatedAt = at
	return s
}

func (m *memStore) AppendMessage(ctx context.Context, msg api.Message) (api.Message, error) {
	if msg.ID == "" {
		msg.ID = api.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	hash := msg.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[msg.SessionID]; ok && len(s.hashes) > 0 && s.hashes[len(s.hashes)-1] == hash {
		return s.messages[len(s.messages)-1], nil
	}
	s := m.touch(msg.SessionID, msg.CreatedAt)
	s.messages = append(s.messages, msg)
	s.hashes = append(s.hashes, hash)
	return msg, nil
}

func (m *memStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]api.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]api.Message(nil), msgs...), nil
}

func (m *memStore) RecordClick(ctx context.Context, c api.Click) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.CreatedAt = c.CreatedAt.UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.touch(c.SessionID, c.CreatedAt)
	s.info.WhatsAppClicked = true
	s.clicks = append(s.clicks, c)
	return nil
}

func (m *memStore) Session(ctx context.Context, sessionID string) (api.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return api.Session{}, ErrNotFound
	}
	out := s.info
	out.Messages = len(s.messages)
	return out, nil
}

func (m *memStore) Close() error { return nil }
