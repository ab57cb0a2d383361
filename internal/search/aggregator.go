package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
)

// Aggregator fans a query out to several providers.
type Aggregator struct {
	providers []Provider
	log       logger.Logger
	metrics   *metrics.Metrics
}

// NewAggregator creates an Aggregator over providers, queried in parallel
// and merged in the order given.
func NewAggregator(providers []Provider, log logger.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{providers: providers, log: log, metrics: m}
}

// Providers returns the provider names in merge order.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// Search queries every provider and merges their results. A failing
// provider is logged and skipped; an error is returned only when every
// provider failed.
func (a *Aggregator) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Invalid("empty query")
	}
	if len(a.providers) == 0 {
		return []Result{}, nil
	}

	perProvider := make([][]Result, len(a.providers))
	failures := make([]error, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			start := time.Now()
			res, err := p.Search(ctx, query)
			if err != nil {
				a.metrics.ObserveProvider(p.Name(), "error", time.Since(start))
				a.log.Warn("search provider failed",
					logger.String("provider", p.Name()),
					logger.Error(err),
				)
				failures[i] = fmt.Errorf("%s: %w", p.Name(), err)
				return nil
			}
			a.metrics.ObserveProvider(p.Name(), "ok", time.Since(start))
			perProvider[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(a.providers) {
		return nil, fmt.Errorf("all search providers failed: %w", errors.Join(failures...))
	}

	return merge(a.providers, perProvider), nil
}

// merge concatenates results in provider order, keeping the first
// occurrence of each normalized link.
func merge(providers []Provider, perProvider [][]Result) []Result {
	seen := make(map[string]struct{})
	merged := make([]Result, 0)

	for i, results := range perProvider {
		for _, r := range results {
			if r.Link == "" {
				continue
			}
			key := NormalizeURL(r.Link)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if r.Source == "" {
				r.Source = providers[i].Name()
			}
			merged = append(merged, r)
		}
	}
	return merged
}
