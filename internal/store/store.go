// Package store persists runs, turns, ingested agent messages, and registry
// records in SQLite. The daemon opens separate databases for workflow state
// and the agents registry; both share the same schema.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open creates the database file (and parent directory) if needed and runs
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL for concurrent read/write; busy timeout so writers retry instead
	// of returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			instance_id  TEXT PRIMARY KEY,
			task         TEXT NOT NULL,
			strategy     TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'running',
			output       TEXT,
			error        TEXT,
			started_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			instance_id TEXT NOT NULL,
			turn        INTEGER NOT NULL,
			speaker     TEXT NOT NULL,
			content     TEXT,
			timed_out   BOOLEAN DEFAULT FALSE,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (instance_id, turn)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT,
			role        TEXT NOT NULL,
			name        TEXT,
			content     TEXT NOT NULL,
			received_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_messages_instance ON agent_messages(instance_id, received_at)`,
		`CREATE TABLE IF NOT EXISTS agents (
			name          TEXT NOT NULL,
			registry_key  TEXT NOT NULL DEFAULT 'agents',
			topic         TEXT,
			pubsub        TEXT,
			orchestrator  BOOLEAN DEFAULT FALSE,
			source        TEXT NOT NULL DEFAULT 'api',
			metadata      TEXT,
			registered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (name, registry_key)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}
