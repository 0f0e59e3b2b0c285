package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blackorbit/orbitchat/pkg/api"
)

type sqliteStore struct{ db *sql.DB }

func openSQLite(ctx context.Context, dsn string) (*sqliteStore, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; pragmas below then apply to every query
	dbh.SetMaxOpenConns(1)
	// set WAL mode
	if _, err := dbh.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	// enforce foreign keys
	if _, err := dbh.ExecContext(ctx, `PRAGMA foreign_keys=ON;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	if err := migrate(ctx, dbh); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	return &sqliteStore{db: dbh}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  whatsapp_clicked INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  session_id TEXT NOT NULL,
  role TEXT NOT NULL,
  text TEXT NOT NULL,
  html TEXT NOT NULL DEFAULT '',
  hash TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, seq);
CREATE TABLE IF NOT EXISTS clicks (
  session_id TEXT NOT NULL,
  url TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_clicks_session ON clicks(session_id);
`)
	return err
}

// q returns the transaction stored in ctx, or the database handle.
func (s *sqliteStore) q(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

func (s *sqliteStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// touchSession creates the session row on first use and bumps updated_at.
func (s *sqliteStore) touchSession(ctx context.Context, id string, at time.Time, clicked bool) error {
	_, err := s.q(ctx).ExecContext(ctx, `
INSERT INTO sessions(id, whatsapp_clicked, created_at, updated_at) VALUES(?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  updated_at = excluded.updated_at,
  whatsapp_clicked = MAX(sessions.whatsapp_clicked, excluded.whatsapp_clicked)`,
		id, boolInt(clicked), at, at)
	return err
}

func (s *sqliteStore) AppendMessage(ctx context.Context, m api.Message) (api.Message, error) {
	if m.ID == "" {
		m.ID = api.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	hash := m.Hash()

	err := s.inTx(ctx, func(ctx context.Context) error {
		last, lastHash, err := s.latest(ctx, m.SessionID)
		if err == nil && lastHash == hash {
			m = last
			return nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.touchSession(ctx, m.SessionID, m.CreatedAt, false); err != nil {
			return err
		}
		_, err = s.q(ctx).ExecContext(ctx,
			`INSERT INTO messages(id, session_id, role, text, html, hash, created_at) VALUES(?,?,?,?,?,?,?)`,
			m.ID, m.SessionID, string(m.Role), m.Text, m.HTML, hash, m.CreatedAt)
		return err
	})
	if err != nil {
		return api.Message{}, err
	}
	return m, nil
}

func (s *sqliteStore) latest(ctx context.Context, sessionID string) (api.Message, string, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, session_id, role, text, html, created_at, hash FROM messages WHERE session_id=? ORDER BY seq DESC LIMIT 1`, sessionID)
	var m api.Message
	var role, hash string
	if err := row.Scan(&m.ID, &m.SessionID, &role, &m.Text, &m.HTML, &m.CreatedAt, &hash); err != nil {
		if err == sql.ErrNoRows {
			return api.Message{}, "", ErrNotFound
		}
		return api.Message{}, "", err
	}
	m.Role = api.Role(role)
	return m, hash, nil
}

func (s *sqliteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]api.Message, error) {
	q := `SELECT id, session_id, role, text, html, created_at FROM (
  SELECT seq, id, session_id, role, text, html, created_at FROM messages WHERE session_id=? ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	q += `) ORDER BY seq ASC`
	rows, err := s.q(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []api.Message
	for rows.Next() {
		var m api.Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Text, &m.HTML, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = api.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) RecordClick(ctx context.Context, c api.Click) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	at := c.CreatedAt.UTC()
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.touchSession(ctx, c.SessionID, at, true); err != nil {
			return err
		}
		_, err := s.q(ctx).ExecContext(ctx, `INSERT INTO clicks(session_id, url, created_at) VALUES(?,?,?)`, c.SessionID, c.URL, at)
		return err
	})
}

func (s *sqliteStore) Session(ctx context.Context, sessionID string) (api.Session, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
SELECT s.id, s.whatsapp_clicked, s.created_at, s.updated_at,
  (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
FROM sessions s WHERE s.id=?`, sessionID)
	var out api.Session
	var clicked int
	if err := row.Scan(&out.ID, &clicked, &out.CreatedAt, &out.UpdatedAt, &out.Messages); err != nil {
		if err == sql.ErrNoRows {
			return api.Session{}, ErrNotFound
		}
		return api.Session{}, err
	}
	out.WhatsAppClicked = clicked != 0
	return out, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
