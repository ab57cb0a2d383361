package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCacheEntry returns the entry stored under key, stale or not.
// Expiry is the caller's concern.
func (s *SQLiteStorage) GetCacheEntry(ctx context.Context, key string) (CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return CacheEntry{}, false, err
	}

	var (
		entry     = CacheEntry{Key: key}
		expiresMS int64
		createdMS int64
	)
	err = db.QueryRowContext(ctx,
		"SELECT value, expires_at, created_at FROM cache_entries WHERE key = ?", key,
	).Scan(&entry.Value, &expiresMS, &createdMS)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry.ExpiresAt = time.UnixMilli(expiresMS)
	entry.CreatedAt = time.UnixMilli(createdMS)
	return entry, true, nil
}

// PutCacheEntry stores entry, replacing any entry with the same key.
func (s *SQLiteStorage) PutCacheEntry(ctx context.Context, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	if _, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.Key, entry.Value, entry.ExpiresAt.UnixMilli(), created.UnixMilli()); err != nil {
		return wrapWriteErr("failed to write cache entry", err)
	}
	return nil
}

// DeleteCacheEntry removes key. Deleting a missing key is not an error.
func (s *SQLiteStorage) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := s.execCount(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// DeleteCacheEntryIfExpired removes key if expires_at <= now.
func (s *SQLiteStorage) DeleteCacheEntryIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	n, err := s.execCount(ctx, "DELETE FROM cache_entries WHERE key = ? AND expires_at <= ?", key, now.UnixMilli())
	return n > 0, err
}

// PurgeExpiredCache removes every entry with expires_at <= now.
func (s *SQLiteStorage) PurgeExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	return s.execCount(ctx, "DELETE FROM cache_entries WHERE expires_at <= ?", now.UnixMilli())
}
