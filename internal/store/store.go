package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the canonical home of every record. All mutation goes through
// Create and UpdateStatus; sqlite serializes writes on the single connection.
type Store struct {
	sql *sql.DB
}

// Open opens (or creates) the record database at path. Use ":memory:" in
// tests.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &Store{sql: conn}, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) Migrate() error {
	_, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id         TEXT NOT NULL,
			kind       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			version    INTEGER NOT NULL DEFAULT 1,
			payload    TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create records: %w", err)
	}

	if _, err := s.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_records_kind_created ON records(kind, created_at DESC)`); err != nil {
		return fmt.Errorf("index records: %w", err)
	}
	return nil
}
