/*
Package storage provides SQLite schema migrations and encoding helpers.
*/
package storage

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations executes database schema migrations in order.
func (s *SQLiteStorage) runMigrations() error {
	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "interactions", up: s.migration001Interactions},
		{version: 2, name: "cache_entries", up: s.migration002CacheEntries},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		s.log.Info("running migration", logger.Int("version", m.version), logger.String("name", m.name))
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := s.setMigrationVersion(m); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	var version int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStorage) setMigrationVersion(m migration) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name)
	return err
}

// migration001Interactions creates the append-only interaction log.
// Timestamps are unix milliseconds so range scans use the index.
func (s *SQLiteStorage) migration001Interactions() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL DEFAULT '',
			entities TEXT NOT NULL DEFAULT '[]',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			timestamp INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create interactions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_interactions_timestamp
		ON interactions(timestamp)
	`); err != nil {
		return fmt.Errorf("failed to create interactions timestamp index: %w", err)
	}

	return nil
}

// migration002CacheEntries creates the keyed cache table.
func (s *SQLiteStorage) migration002CacheEntries() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create cache_entries table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cache_entries_expires
		ON cache_entries(expires_at)
	`); err != nil {
		return fmt.Errorf("failed to create cache_entries expiry index: %w", err)
	}

	return nil
}

// encodeJSON marshals v for a TEXT column, falling back to fallback on error.
func (s *SQLiteStorage) encodeJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("failed to marshal column", logger.Error(err))
		return fallback
	}
	return string(data)
}

// wrapWriteErr wraps a failed write with msg. A full, read-only or
// unopenable database also matches errs.ErrStorageUnavailable.
func wrapWriteErr(msg string, err error) error {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqlite3.SQLITE_FULL, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%s: %w: %w", msg, errs.ErrStorageUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
