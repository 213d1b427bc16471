package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avezina/parley/internal/sessioncache"
)

// ErrNotFound reports a session id with no stored record.
var ErrNotFound = errors.New("session not found")

// SessionStore persists session context records to SQLite. It implements
// sessioncache.Store as the system of record behind the in-process cache.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(dbPath string) (*SessionStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "parley.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SessionStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SessionStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			resume TEXT NOT NULL DEFAULT '',
			job_description TEXT NOT NULL DEFAULT '',
			additional_context TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			started_at TEXT,
			ended_at TEXT,
			created_at TEXT,
			updated_at TEXT,
			extra TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}

	return nil
}

func (s *SessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SessionStore) Fetch(ctx context.Context, sessionID string) (sessioncache.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, resume, job_description, additional_context, type, status,
		        started_at, ended_at, created_at, updated_at, extra
		 FROM sessions WHERE id = ?`,
		sessionID,
	)

	var rec sessioncache.Record
	var startedAt, endedAt, createdAt, updatedAt sql.NullString
	var extra string
	err := row.Scan(
		&rec.SessionID, &rec.Resume, &rec.JobDescription, &rec.AdditionalContext,
		&rec.Type, &rec.Status,
		&startedAt, &endedAt, &createdAt, &updatedAt, &extra,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sessioncache.Record{}, ErrNotFound
	}
	if err != nil {
		return sessioncache.Record{}, fmt.Errorf("query session %s: %w", sessionID, err)
	}

	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return sessioncache.Record{}, fmt.Errorf("parse session %s started_at: %w", sessionID, err)
	}
	if rec.EndedAt, err = parseTime(endedAt); err != nil {
		return sessioncache.Record{}, fmt.Errorf("parse session %s ended_at: %w", sessionID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return sessioncache.Record{}, fmt.Errorf("parse session %s created_at: %w", sessionID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return sessioncache.Record{}, fmt.Errorf("parse session %s updated_at: %w", sessionID, err)
	}

	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &rec.Extra); err != nil {
			return sessioncache.Record{}, fmt.Errorf("decode session %s extra: %w", sessionID, err)
		}
	}

	return rec, nil
}

func (s *SessionStore) Upsert(ctx context.Context, record sessioncache.Record) error {
	if strings.TrimSpace(record.SessionID) == "" {
		return errors.New("session id is required")
	}

	extra := ""
	if len(record.Extra) > 0 {
		encoded, err := json.Marshal(record.Extra)
		if err != nil {
			return fmt.Errorf("encode session %s extra: %w", record.SessionID, err)
		}
		extra = string(encoded)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (id, resume, job_description, additional_context, type, status,
		  started_at, ended_at, created_at, updated_at, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Resume,
		record.JobDescription,
		record.AdditionalContext,
		record.Type,
		record.Status,
		formatTime(record.StartedAt),
		formatTime(record.EndedAt),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
		extra,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", record.SessionID, err)
	}
	return nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v.String)
}
