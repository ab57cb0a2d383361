/*
Package storage implements the persistent local store for kimo.

It keeps the append-only interaction log and the keyed cache entries in a
single SQLite database (modernc.org/sqlite, pure Go, no CGo). The default
location is ~/.kimo/kimo.db.

If the database cannot be opened the store disables itself and every
operation returns errs.ErrStorageUnavailable; callers are expected to treat
history and cache as optional.
*/
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"

	_ "modernc.org/sqlite"
)

// HistoryStore is the interaction-log half of the store.
type HistoryStore interface {
	// RecordInteractions appends events in a single transaction.
	RecordInteractions(ctx context.Context, events []Interaction) error

	// InteractionsSince returns events with Timestamp >= since, oldest first.
	InteractionsSince(ctx context.Context, since time.Time) ([]Interaction, error)

	// DeleteInteractionsBefore removes events older than cutoff.
	DeleteInteractionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ClearInteractions removes every event.
	ClearInteractions(ctx context.Context) (int64, error)
}

// CacheStore is the keyed, expiring half of the store.
type CacheStore interface {
	GetCacheEntry(ctx context.Context, key string) (CacheEntry, bool, error)
	PutCacheEntry(ctx context.Context, entry CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error

	// DeleteCacheEntryIfExpired removes key only while its stored entry is
	// stale at now, so a concurrent fresh Put survives a lazy eviction.
	DeleteCacheEntryIfExpired(ctx context.Context, key string, now time.Time) (bool, error)

	PurgeExpiredCache(ctx context.Context, now time.Time) (int64, error)
}

// Storage defines the full persistent storage surface.
type Storage interface {
	HistoryStore
	CacheStore

	// Init opens the database and runs migrations.
	Init() error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	log      logger.Logger
	mu       sync.Mutex
	initOnce sync.Once
}

// DefaultPath returns ~/.kimo/kimo.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".kimo", "kimo.db"), nil
}

// NewStorage creates a SQLite storage instance at dbPath (DefaultPath if empty).
// The database is not opened until Init is called.
func NewStorage(dbPath string, log logger.Logger) *SQLiteStorage {
	if log == nil {
		log = logger.NewNop()
	}
	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			log.Warn("storage disabled", logger.Error(err))
			return &SQLiteStorage{enabled: false, log: log}
		}
		dbPath = p
	}

	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
		log:     log,
	}
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// return errs.ErrStorageUnavailable.
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return errs.ErrStorageUnavailable
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = s.disable(fmt.Errorf("failed to create db directory: %w", err))
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = s.disable(fmt.Errorf("failed to open database: %w", err))
			return
		}
		// One connection serialises writers and keeps SQLITE_BUSY away.
		db.SetMaxOpenConns(1)
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = s.disable(fmt.Errorf("failed to ping database: %w", err))
			return
		}

		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			initErr = s.disable(fmt.Errorf("failed to set busy timeout: %w", err))
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = s.disable(fmt.Errorf("failed to run migrations: %w", err))
			return
		}
	})

	return initErr
}

func (s *SQLiteStorage) disable(err error) error {
	s.enabled = false
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	s.log.Warn("storage disabled", logger.String("path", s.dbPath), logger.Error(err))
	return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Enabled reports whether the store is usable.
func (s *SQLiteStorage) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.db != nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// conn returns the open database or ErrStorageUnavailable. Caller holds mu.
func (s *SQLiteStorage) conn() (*sql.DB, error) {
	if !s.enabled || s.db == nil {
		return nil, errs.ErrStorageUnavailable
	}
	return s.db, nil
}
