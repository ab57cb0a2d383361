package companion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/kimo/internal/cache"
	"github.com/khanglvm/kimo/internal/config"
	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/storage"
	"github.com/khanglvm/kimo/internal/summarize"
)

type fixedProvider struct {
	name    string
	results []search.Result
	err     error
}

func (p fixedProvider) Name() string { return p.name }

func (p fixedProvider) Search(context.Context, string) ([]search.Result, error) {
	return p.results, p.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Tracker.FlushInterval = 10 * time.Millisecond
	return cfg
}

func golangResults() []search.Result {
	return []search.Result{
		{Title: "Go tour", Link: "https://go.dev/tour", Description: "interactive golang tour"},
		{Title: "Go blog", Link: "https://go.dev/blog", Description: "golang news"},
		{Title: "Go spec", Link: "https://go.dev/ref/spec", Description: "golang language reference"},
	}
}

func TestSearchPersonalizesAndRecords(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg, nil, WithProviders(fixedProvider{name: "fixed", results: golangResults()}))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Store.RecordInteractions(ctx, []storage.Interaction{{
		ID:        "seed",
		Type:      "click",
		URL:       "https://go.dev/ref/spec",
		Timestamp: time.Now().Add(-time.Hour),
	}}))

	resp, err := c.Search(ctx, "golang")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "https://go.dev/ref/spec", resp.Results[0].Link)
	assert.Equal(t, []string{"fixed"}, resp.Providers)
	assert.NotEmpty(t, resp.ID)
	require.NotNil(t, resp.Results[0].Breakdown)

	require.NoError(t, c.Close())

	store := storage.NewStorage(cfg.StoragePath(), nil)
	require.NoError(t, store.Init())
	defer store.Close()

	rows, err := store.InteractionsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "search", rows[1].Type)
	assert.Equal(t, "golang", rows[1].Query)
	assert.Equal(t, resp.ID, rows[1].Metadata["search_id"])
}

func TestSearchAllProvidersFailed(t *testing.T) {
	c, err := New(testConfig(t), nil, WithProviders(fixedProvider{name: "down", err: errors.New("boom")}))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Search(context.Background(), "golang")
	require.Error(t, err)
}

func TestDegradedStorageStillRanks(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(cfg.DataDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	cfg.Storage.Path = filepath.Join(blocker, "kimo.db")

	c, err := New(cfg, nil, WithProviders(fixedProvider{name: "fixed", results: golangResults()}))
	require.NoError(t, err)
	defer c.Close()
	assert.False(t, c.Store.Enabled())

	resp, err := c.Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)

	sum := c.Summaries.Summarize(context.Background(), "Go is a language. It compiles fast. It has goroutines.", summarizeOpts())
	assert.NotEmpty(t, sum.Text)
	assert.False(t, sum.Cached)
}

func TestRankOrdersTiesByRelevance(t *testing.T) {
	c, err := New(testConfig(t), nil, WithProviders())
	require.NoError(t, err)
	defer c.Close()

	in := []search.Result{
		{Title: "Cat pictures", Link: "https://cats.example", Description: "kittens"},
		{Title: "Badger database", Link: "https://badger.example", Description: "badger key value store"},
	}
	ranked := c.Rank(context.Background(), "badger database", in)

	require.Len(t, ranked, 2)
	assert.Equal(t, "https://badger.example", ranked[0].Link)
	require.NotNil(t, ranked[0].Breakdown)
	assert.Greater(t, ranked[0].Breakdown.Base, ranked[1].Breakdown.Base)
	assert.Equal(t, 0.0, in[1].Score)
}

func TestRankWithoutHistoryReturnsInput(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(cfg.DataDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	cfg.Storage.Path = filepath.Join(blocker, "kimo.db")

	c, err := New(cfg, nil, WithProviders())
	require.NoError(t, err)
	defer c.Close()

	in := golangResults()
	out := c.Rank(context.Background(), "golang reference", in)

	assert.Equal(t, in, out)
	for _, r := range out {
		assert.Equal(t, 0.0, r.Score)
		assert.Nil(t, r.Breakdown)
	}
}

func TestBadgerCacheBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "badger"

	c, err := New(cfg, nil, WithProviders())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Cache.Put(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	// the sqlite cache table is untouched
	_, ok, err = c.Store.GetCacheEntry(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(cfg.BadgerDir())
	assert.NoError(t, err)
}

func TestSummariesAreCachedAcrossCalls(t *testing.T) {
	c, err := New(testConfig(t), nil, WithProviders())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	text := "Kimo ranks search results locally. History never leaves the machine. Summaries are cached for a week."
	first := c.Summaries.Summarize(ctx, text, summarizeOpts())
	second := c.Summaries.Summarize(ctx, text, summarizeOpts())

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)

	_, ok, err := cache.GetJSON[map[string]any](ctx, c.Cache, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func summarizeOpts() summarize.Options {
	return summarize.Options{MaxLength: 20}
}
