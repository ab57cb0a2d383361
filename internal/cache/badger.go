package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/khanglvm/kimo/internal/storage"
)

const badgerKeyPrefix = "cache:"

// badgerRecord is the on-disk value layout.
type badgerRecord struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"e"`
	CreatedAt int64  `json:"c"`
}

// BadgerBackend stores cache entries in BadgerDB.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at dir. An empty dir
// opens an in-memory database.
func OpenBadger(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &BadgerBackend{db: db}, nil
}

// NewBadgerBackend wraps an already opened database.
func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func (b *BadgerBackend) GetCacheEntry(ctx context.Context, key string) (storage.CacheEntry, bool, error) {
	var rec badgerRecord

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.CacheEntry{}, false, nil
	}
	if err != nil {
		return storage.CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}

	return storage.CacheEntry{
		Key:       key,
		Value:     rec.Value,
		ExpiresAt: time.UnixMilli(rec.ExpiresAt),
		CreatedAt: time.UnixMilli(rec.CreatedAt),
	}, true, nil
}

func (b *BadgerBackend) PutCacheEntry(ctx context.Context, entry storage.CacheEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	data, err := json.Marshal(badgerRecord{
		Value:     entry.Value,
		ExpiresAt: entry.ExpiresAt.UnixMilli(),
		CreatedAt: created.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerKeyPrefix+entry.Key), data); err != nil {
			return fmt.Errorf("set cache entry: %w", err)
		}
		return nil
	})
}

func (b *BadgerBackend) DeleteCacheEntry(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + key))
	})
}

// DeleteCacheEntryIfExpired re-reads key inside the write transaction and
// deletes it only if it is still stale at now.
func (b *BadgerBackend) DeleteCacheEntryIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	var deleted bool

	err := b.db.Update(func(txn *badger.Txn) error {
		k := []byte(badgerKeyPrefix + key)
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var rec badgerRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return fmt.Errorf("decode cache entry: %w", err)
		}
		if rec.ExpiresAt > now.UnixMilli() {
			return nil
		}

		deleted = true
		return txn.Delete(k)
	})
	if err != nil {
		return false, fmt.Errorf("evict cache entry: %w", err)
	}
	return deleted, nil
}

// PurgeExpiredCache scans the cache prefix and deletes expired entries in a
// single transaction.
func (b *BadgerBackend) PurgeExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	var purged int64
	cutoff := now.UnixMilli()

	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)

		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				it.Close()
				return err
			}

			item := it.Item()
			var rec badgerRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				it.Close()
				return fmt.Errorf("decode cache entry: %w", err)
			}
			if rec.ExpiresAt <= cutoff {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete cache entry: %w", err)
			}
		}
		purged = int64(len(stale))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}
