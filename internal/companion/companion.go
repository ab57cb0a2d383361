/*
Package companion assembles kimo's components into one explicit context
object.

The CLI and the HTTP API build a Companion from configuration and use its
components; nothing in kimo reads global state. Storage and cache failures
degrade the companion rather than failing New: ranking then returns results
unpersonalized and summaries go uncached.
*/
package companion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/kimo/internal/cache"
	"github.com/khanglvm/kimo/internal/config"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
	"github.com/khanglvm/kimo/internal/personalize"
	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/storage"
	"github.com/khanglvm/kimo/internal/summarize"
)

// Companion holds the wired components.
type Companion struct {
	Config  *config.Config
	Log     logger.Logger
	Metrics *metrics.Metrics

	Store        *storage.SQLiteStorage
	Cache        *cache.Cache
	Tracker      *personalize.Tracker
	Personalizer *personalize.Personalizer
	Sweeper      *personalize.Sweeper
	Relevance    *search.Relevance
	Aggregator   *search.Aggregator
	Summaries    *summarize.Service

	closers []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	client    *http.Client
	providers []search.Provider
}

// WithHTTPClient sets the client used for outbound calls. By default each
// provider builds one with its configured timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithProviders replaces the configured search providers.
func WithProviders(p ...search.Provider) Option {
	return func(o *options) { o.providers = p }
}

// New builds a Companion from cfg. Call Close when done.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Companion, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Companion{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
	}

	c.Store = storage.NewStorage(cfg.StoragePath(), log.With(logger.String("component", "storage")))
	if err := c.Store.Init(); err != nil {
		log.Warn("history and cache disabled", logger.String("path", cfg.StoragePath()), logger.Error(err))
	}
	c.closers = append(c.closers, c.Store.Close)

	c.Cache = cache.New(c.cacheBackend(), log.With(logger.String("component", "cache")), c.Metrics)

	c.Tracker = personalize.NewTracker(c.Store, cfg.Tracker, log.With(logger.String("component", "tracker")), c.Metrics)
	c.Personalizer = personalize.NewPersonalizer(c.Store, log.With(logger.String("component", "ranking")), c.Metrics)
	c.Sweeper = personalize.NewSweeper(c.Store, c.Cache, cfg.Retention.MaxAge, cfg.Retention.SweepInterval, log.With(logger.String("component", "sweeper")), c.Metrics)
	c.Relevance = search.NewRelevance(log)
	c.Personalizer.Relevance = c.Relevance.Apply

	providers := o.providers
	if providers == nil {
		providers = buildProviders(cfg.Search, o.client)
	}
	c.Aggregator = search.NewAggregator(providers, log.With(logger.String("component", "search")), c.Metrics)

	summaries, err := c.buildSummaries(o.client)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Summaries = summaries

	return c, nil
}

// cacheBackend returns the configured backend, falling back to the SQLite
// table when Badger cannot be opened.
func (c *Companion) cacheBackend() cache.Backend {
	if c.Config.Cache.Backend != "badger" {
		return c.Store
	}
	b, err := cache.OpenBadger(c.Config.BadgerDir())
	if err != nil {
		c.Log.Warn("badger cache unavailable, using sqlite", logger.String("dir", c.Config.BadgerDir()), logger.Error(err))
		return c.Store
	}
	c.closers = append(c.closers, b.Close)
	return b
}

func buildProviders(cfg config.SearchConfig, client *http.Client) []search.Provider {
	var providers []search.Provider
	if cfg.DuckDuckGo.Enabled {
		providers = append(providers, search.NewDuckDuckGo(cfg.DuckDuckGo, client))
	}
	if cfg.Wikipedia.Enabled {
		providers = append(providers, search.NewWikipedia(cfg.Wikipedia, client))
	}
	if cfg.Google.Enabled {
		providers = append(providers, search.NewGoogle(cfg.Google, client))
	}
	return providers
}

func (c *Companion) buildSummaries(client *http.Client) (*summarize.Service, error) {
	cfg := c.Config.Summarize
	log := c.Log.With(logger.String("component", "summarize"))

	var remote summarize.Summarizer
	if cfg.Remote.Endpoint != "" {
		r, err := summarize.NewRemoteSummarizer(cfg.Remote, client, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create remote summarizer: %w", err)
		}
		remote = r
	}

	local := summarize.NewLocalLoader(cfg, log, nil)
	return summarize.NewService(cfg, local, remote, c.Cache, log, c.Metrics), nil
}

// SearchResponse is the outcome of one personalized search.
type SearchResponse struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Results   []search.Result `json:"results"`
	Providers []string        `json:"providers"`
	Took      time.Duration   `json:"took"`
}

// Search queries every provider, scores the merged list and personalizes
// it. The search is recorded as an interaction. Only a total provider
// failure is an error.
func (c *Companion) Search(ctx context.Context, query string) (SearchResponse, error) {
	start := time.Now()
	resp := SearchResponse{
		ID:        uuid.NewString(),
		Query:     query,
		Providers: c.Aggregator.Providers(),
	}

	searchCtx := ctx
	if c.Config.Search.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, c.Config.Search.Timeout)
		defer cancel()
	}

	results, err := c.Aggregator.Search(searchCtx, query)
	if err != nil {
		return resp, err
	}

	resp.Results = c.Rank(ctx, query, results)

	if err := c.Tracker.TrackSearch(query, map[string]string{
		"search_id": resp.ID,
		"results":   strconv.Itoa(len(resp.Results)),
	}); err != nil {
		c.Log.Debug("search not recorded", logger.Error(err))
	}

	resp.Took = time.Since(start)
	return resp, nil
}

// Rank personalizes results with the configured options. Unscored results
// get a relevance base score; when history is unavailable the input comes
// back untouched.
func (c *Companion) Rank(ctx context.Context, query string, results []search.Result) []search.Result {
	return c.Personalizer.RankResults(ctx, results, query, c.Config.Ranking)
}

// History returns stored interactions newer than since, oldest first.
func (c *Companion) History(ctx context.Context, since time.Time) ([]storage.Interaction, error) {
	return c.Store.InteractionsSince(ctx, since)
}

// Close drains the tracker and releases storage. It is safe to call once
// the companion is no longer in use.
func (c *Companion) Close() error {
	if c.Tracker != nil {
		c.Tracker.Stop()
	}
	var errList []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
