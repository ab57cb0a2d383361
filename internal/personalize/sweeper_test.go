package personalize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/kimo/internal/cache"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/storage"
)

type countingPurger struct {
	calls int
	n     int64
	err   error
}

func (p *countingPurger) Purge(context.Context) (int64, error) {
	p.calls++
	n := p.n
	p.n = 0
	return n, p.err
}

func newTestSweeper(h storage.HistoryStore, c Purger) *Sweeper {
	s := NewSweeper(h, c, 30*day, time.Hour, logger.NewNop(), nil)
	s.Now = func() time.Time { return testNow }
	return s
}

func TestSweepIsIdempotent(t *testing.T) {
	h := &memHistory{events: []storage.Interaction{
		click("https://old.com", 31*day),
		click("https://older.com", 40*day),
		click("https://fresh.com", 29*day),
		click("https://today.com", 0),
	}}
	purger := &countingPurger{n: 2}
	s := newTestSweeper(h, purger)

	first, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Interactions)
	assert.Equal(t, int64(2), first.CacheEntries)
	assert.Equal(t, testNow.Add(-30*day), first.Cutoff)

	second, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Interactions)
	assert.Equal(t, int64(0), second.CacheEntries)

	remaining := h.snapshot()
	require.Len(t, remaining, 2)
	assert.Equal(t, "https://fresh.com", remaining[0].URL)
	assert.Equal(t, "https://today.com", remaining[1].URL)
}

func TestSweepReportsPartialFailure(t *testing.T) {
	h := &memHistory{events: []storage.Interaction{click("https://old.com", 45*day)}}
	s := newTestSweeper(h, &countingPurger{err: errors.New("locked")})

	report, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge cache")
	assert.Equal(t, int64(1), report.Interactions)
}

func TestServeStopsOnCancel(t *testing.T) {
	purger := &countingPurger{}
	s := NewSweeper(&memHistory{}, purger, 0, 5*time.Millisecond, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Serve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, purger.calls, 2)
	assert.Equal(t, "retention-sweeper", s.String())
}

func TestSweepConcurrentWithRankAndAppend(t *testing.T) {
	store := storage.NewStorage(filepath.Join(t.TempDir(), "kimo.db"), logger.NewNop())
	require.NoError(t, store.Init())
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	var seed []storage.Interaction
	for i := 0; i < 50; i++ {
		seed = append(seed, storage.Interaction{ID: fmt.Sprintf("old-%d", i), Type: "click", URL: "https://old.com", Timestamp: now.Add(-40 * day)})
	}
	seed = append(seed, storage.Interaction{ID: "kept", Type: "click", URL: "https://b.com", Timestamp: now.Add(-time.Hour)})
	require.NoError(t, store.RecordInteractions(ctx, seed))

	sweeper := NewSweeper(store, cache.New(store, nil, nil), 30*day, time.Hour, nil, nil)
	p := NewPersonalizer(store, nil, nil)
	in := []search.Result{{Link: "https://a.com"}, {Link: "https://b.com"}}

	const rounds = 20
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for range rounds {
			_, err := sweeper.Sweep(ctx)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for range rounds {
			ranked := p.RankResults(ctx, in, "q", DefaultOptions())
			if assert.Len(t, ranked, 2) {
				assert.Equal(t, "https://b.com", ranked[0].Link)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := range rounds {
			err := store.RecordInteractions(ctx, []storage.Interaction{{
				ID: fmt.Sprintf("new-%d", i), Type: "click", URL: "https://c.com", Timestamp: time.Now(),
			}})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	_, err := sweeper.Sweep(ctx)
	require.NoError(t, err)

	rows, err := store.InteractionsSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, rounds+1)
	for _, r := range rows {
		assert.NotEqual(t, "https://old.com", r.URL)
	}
}
