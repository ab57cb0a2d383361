/*
Package search fetches raw result lists from public search backends.

Providers are queried in parallel by an Aggregator, merged in provider
order and de-duplicated by normalized link. Relevance assigns a BM25 base
score to results that arrive without one so the ranking layer has a
relevance signal to blend with the user's history.
*/
package search

import (
	"context"
	"time"
)

// Result is one search hit.
type Result struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitzero"`
	Source      string    `json:"source,omitempty"`

	// Score is the base relevance on input and the final score after
	// ranking. Zero means unscored.
	Score float64 `json:"score,omitempty"`

	// Breakdown explains a ranked score. Nil on unranked results.
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`
}

// ScoreBreakdown is the debug view of how a final score was assembled.
type ScoreBreakdown struct {
	Base      float64 `json:"base"`
	Personal  float64 `json:"personal"`
	Freshness float64 `json:"freshness"`

	Click    float64 `json:"click"`
	Dwell    float64 `json:"dwell"`
	Bookmark float64 `json:"bookmark"`
	Share    float64 `json:"share"`
	Terms    float64 `json:"terms"`
	Domain   float64 `json:"domain"`

	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// Provider is a search backend.
type Provider interface {
	// Name identifies the provider in logs, metrics and Result.Source.
	Name() string

	// Search returns hits for query in provider order.
	Search(ctx context.Context, query string) ([]Result, error)
}
