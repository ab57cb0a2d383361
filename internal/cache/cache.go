/*
Package cache implements the expiring key/value cache used for generated
artifacts such as summaries.

Entries carry an absolute expiry. Reading an expired entry reports it as
absent and evicts it on the spot; Purge removes every expired entry in one
pass for the periodic sweeper.
*/
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
	"github.com/khanglvm/kimo/internal/storage"
)

// Backend persists cache entries. storage.SQLiteStorage and BadgerBackend
// both satisfy it.
type Backend = storage.CacheStore

// Cache is a TTL cache over a Backend. It is safe for concurrent use when
// the backend is.
type Cache struct {
	backend Backend
	log     logger.Logger
	metrics *metrics.Metrics

	// Now is the clock used for expiry decisions.
	Now func() time.Time
}

// New creates a Cache. A nil backend yields a cache whose every operation
// returns errs.ErrStorageUnavailable.
func New(backend Backend, log logger.Logger, m *metrics.Metrics) *Cache {
	if log == nil {
		log = logger.NewNop()
	}
	return &Cache{
		backend: backend,
		log:     log,
		metrics: m,
		Now:     time.Now,
	}
}

// Put stores value under key for ttl, overwriting any previous value.
func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errs.Invalid("empty cache key")
	}
	if ttl <= 0 {
		return errs.Invalid("ttl must be positive, got %s", ttl)
	}
	if c.backend == nil {
		return errs.ErrStorageUnavailable
	}

	now := c.Now()
	return c.backend.PutCacheEntry(ctx, storage.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
}

// Get returns the value under key. Expired entries are evicted and
// reported as absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.backend == nil {
		return nil, false, errs.ErrStorageUnavailable
	}

	entry, ok, err := c.backend.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.metrics.CacheResult("miss")
		return nil, false, nil
	}

	if now := c.Now(); entry.Expired(now) {
		c.metrics.CacheResult("expired")
		evicted, err := c.backend.DeleteCacheEntryIfExpired(ctx, key, now)
		switch {
		case err != nil:
			c.log.Warn("failed to evict expired cache entry", logger.String("key", key), logger.Error(err))
		case evicted:
			c.metrics.CacheEvicted(1)
		}
		return nil, false, nil
	}

	c.metrics.CacheResult("hit")
	c.log.Debug("cache hit", logger.String("key", key))
	return entry.Value, true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.backend == nil {
		return errs.ErrStorageUnavailable
	}
	return c.backend.DeleteCacheEntry(ctx, key)
}

// Purge removes all expired entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	if c.backend == nil {
		return 0, errs.ErrStorageUnavailable
	}

	n, err := c.backend.PurgeExpiredCache(ctx, c.Now())
	if err != nil {
		return 0, err
	}
	c.metrics.CacheEvicted(int(n))
	return n, nil
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return v, true, nil
}

// PutJSON encodes v and stores it under key for ttl.
func PutJSON[T any](ctx context.Context, c *Cache, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return c.Put(ctx, key, raw, ttl)
}
