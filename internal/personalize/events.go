/*
Package personalize re-ranks search results against the local interaction
history.

Interactions (clicks, dwell time, searches, bookmarks, shares) are appended
to the store by a background Tracker. Each ranking call rebuilds a
UserProfile from the raw log, weighting every event by an exponential
decay on its age, and blends the personal score with result freshness and
any base relevance score. Ranking fails open: if history cannot be read the
input order is returned untouched.
*/
package personalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/storage"
)

// EventType identifies the kind of interaction.
type EventType string

const (
	Click    EventType = "click"
	Dwell    EventType = "dwell"
	Search   EventType = "search"
	Bookmark EventType = "bookmark"
	Share    EventType = "share"
)

// EventTypes lists every recognised event type.
var EventTypes = []EventType{Click, Dwell, Search, Bookmark, Share}

// ParseEventType validates s as an EventType.
func ParseEventType(s string) (EventType, error) {
	for _, t := range EventTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errs.Invalid("unknown event type %q", s)
}

// InteractionData is the caller-supplied payload of an interaction.
type InteractionData struct {
	URL      string            `json:"url,omitempty"`
	Query    string            `json:"query,omitempty"`
	Duration time.Duration     `json:"duration,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InteractionEvent is one user interaction.
type InteractionEvent struct {
	ID        string
	Type      EventType
	URL       string
	Query     string
	Entities  []string
	Duration  time.Duration
	Metadata  map[string]string
	Timestamp time.Time
}

// NewInteractionEvent builds a validated event stamped at now.
func NewInteractionEvent(t EventType, data InteractionData, now time.Time) (InteractionEvent, error) {
	e := InteractionEvent{
		ID:        uuid.NewString(),
		Type:      t,
		URL:       data.URL,
		Query:     data.Query,
		Duration:  data.Duration,
		Metadata:  data.Metadata,
		Timestamp: now,
	}
	if t == Search {
		e.Entities = ExtractEntities(data.Query)
	}
	if err := e.Validate(); err != nil {
		return InteractionEvent{}, err
	}
	return e, nil
}

// Validate rejects events that cannot contribute to a profile.
func (e InteractionEvent) Validate() error {
	switch e.Type {
	case Click, Bookmark, Share:
		if e.URL == "" {
			return errs.Invalid("%s event requires a url", e.Type)
		}
	case Dwell:
		if e.URL == "" {
			return errs.Invalid("dwell event requires a url")
		}
		if e.Duration < 0 {
			return errs.Invalid("dwell duration must not be negative")
		}
	case Search:
		if e.Query == "" {
			return errs.Invalid("search event requires a query")
		}
	default:
		return errs.Invalid("unknown event type %q", e.Type)
	}
	if e.Timestamp.IsZero() {
		return errs.Invalid("event timestamp is not set")
	}
	return nil
}

// String implements fmt.Stringer for log lines.
func (e InteractionEvent) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.ID)
}

// ToStorage converts the event to its storage row.
func (e InteractionEvent) ToStorage() storage.Interaction {
	return storage.Interaction{
		ID:        e.ID,
		Type:      string(e.Type),
		URL:       e.URL,
		Query:     e.Query,
		Entities:  e.Entities,
		Duration:  e.Duration,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
}

func fromStorage(row storage.Interaction) InteractionEvent {
	return InteractionEvent{
		ID:        row.ID,
		Type:      EventType(row.Type),
		URL:       row.URL,
		Query:     row.Query,
		Entities:  row.Entities,
		Duration:  row.Duration,
		Metadata:  row.Metadata,
		Timestamp: row.Timestamp,
	}
}
