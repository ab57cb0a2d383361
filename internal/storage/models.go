package storage

import "time"

// Interaction is one row of the append-only interaction log.
type Interaction struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	URL       string            `json:"url,omitempty"`
	Query     string            `json:"query,omitempty"`
	Entities  []string          `json:"entities,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// CacheEntry is a keyed value with an absolute expiry.
type CacheEntry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the entry is stale at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
