package personalize

import (
	"math"
	"sort"
	"time"

	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/storage"
)

// Per-event multipliers applied before decay.
const (
	clickWeight        = 2.0
	dwellWeightPerSec  = 0.01
	searchWeightPerHit = 1.5
	shareWeight        = 3.0
	bookmarkWeight     = 4.0
)

// URLWeights are the decayed engagement totals for one URL.
type URLWeights struct {
	Click    float64 `json:"click"`
	Dwell    float64 `json:"dwell"`
	Bookmark float64 `json:"bookmark"`
	Share    float64 `json:"share"`
}

// Total is the URL's contribution to a personal score.
func (w URLWeights) Total() float64 {
	return w.Click + w.Dwell + w.Bookmark + w.Share
}

// TermWeight is the decayed search weight of one entity term.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// UserProfile is derived from the interaction log on demand and never
// stored.
type UserProfile struct {
	URLs    map[string]URLWeights `json:"urls"`
	Terms   []TermWeight          `json:"terms"`
	Domains map[string]float64    `json:"domains"`
	Events  int                   `json:"events"`
	Since   time.Time             `json:"since"`
	BuiltAt time.Time             `json:"built_at"`
}

// Empty reports whether the profile carries no signal.
func (p UserProfile) Empty() bool {
	return len(p.URLs) == 0 && len(p.Terms) == 0
}

// ageDays returns the fractional age of ts at now. Future timestamps count
// as age zero.
func ageDays(ts, now time.Time) float64 {
	d := now.Sub(ts).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// BuildProfile aggregates events into decayed per-URL, per-term and
// per-domain weights.
func BuildProfile(events []storage.Interaction, now, since time.Time, decayFactor float64) UserProfile {
	p := UserProfile{
		URLs:    make(map[string]URLWeights),
		Domains: make(map[string]float64),
		Events:  len(events),
		Since:   since,
		BuiltAt: now,
	}
	terms := make(map[string]float64)

	for _, row := range events {
		e := fromStorage(row)
		decay := math.Pow(decayFactor, ageDays(e.Timestamp, now))

		if e.Type == Search {
			entities := e.Entities
			if len(entities) == 0 {
				entities = ExtractEntities(e.Query)
			}
			for _, term := range entities {
				terms[term] += searchWeightPerHit * decay
			}
			continue
		}

		if e.URL == "" {
			continue
		}
		key := search.NormalizeURL(e.URL)
		w := p.URLs[key]
		var added float64

		switch e.Type {
		case Click:
			added = clickWeight * decay
			w.Click += added
		case Dwell:
			added = dwellWeightPerSec * e.Duration.Seconds() * decay
			w.Dwell += added
		case Bookmark:
			added = bookmarkWeight * decay
			w.Bookmark += added
		case Share:
			added = shareWeight * decay
			w.Share += added
		default:
			continue
		}

		p.URLs[key] = w
		if domain := search.Domain(e.URL); domain != "" {
			p.Domains[domain] += added
		}
	}

	// Sorted so that term sums, and therefore ties, are deterministic.
	p.Terms = make([]TermWeight, 0, len(terms))
	for term, weight := range terms {
		p.Terms = append(p.Terms, TermWeight{Term: term, Weight: weight})
	}
	sort.Slice(p.Terms, func(i, j int) bool {
		return p.Terms[i].Term < p.Terms[j].Term
	})

	return p
}
