package summarize

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/kimo/internal/cache"
	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/model"
)

const article = `Go is an open source programming language. Go makes it easy to build simple, reliable software.
The Go compiler produces static binaries. Many cloud tools are written in Go. Concurrency in Go uses goroutines and channels.
Goroutines are cheap. Channels let goroutines communicate.`

type stubSummarizer struct {
	calls atomic.Int32
	out   string
	err   error
	delay time.Duration
}

func (s *stubSummarizer) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.out, s.err
}

func newBadgerCache(t *testing.T) *cache.Cache {
	t.Helper()
	b, err := cache.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return cache.New(b, logger.NewNop(), nil)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "one two...", Fallback("one two three four", 2))
	assert.Equal(t, "short...", Fallback("short", 10))
	assert.Equal(t, "...", Fallback("", 10))
}

func TestShortInputFallsBack(t *testing.T) {
	local := &stubSummarizer{out: "should not be used"}
	svc := NewService(DefaultConfig(), staticLoader(local), nil, nil, nil, nil)

	s := svc.Summarize(context.Background(), "short", Options{})

	assert.True(t, s.IsFallback)
	assert.Equal(t, "short...", s.Text)
	assert.Equal(t, SourceFallback, s.Source)
	assert.NotEmpty(t, s.Warning)
	assert.Equal(t, int32(0), local.calls.Load())
}

func TestLocalSummaryIsCached(t *testing.T) {
	c := newBadgerCache(t)
	svc := NewService(DefaultConfig(), NewLocalLoader(DefaultConfig(), nil, nil), nil, c, nil, nil)

	first := svc.Summarize(context.Background(), article, Options{MaxLength: 20})
	require.False(t, first.IsFallback)
	assert.Equal(t, SourceLocal, first.Source)
	assert.False(t, first.Cached)
	assert.LessOrEqual(t, len(strings.Fields(first.Text)), 20)
	assert.NotEmpty(t, first.Text)

	second := svc.Summarize(context.Background(), article, Options{MaxLength: 20})
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)

	// Different length, different entry.
	other := svc.Summarize(context.Background(), article, Options{MaxLength: 10})
	assert.False(t, other.Cached)
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	remote := &stubSummarizer{err: errors.New("502")}
	local := &stubSummarizer{out: "local summary"}
	svc := NewService(DefaultConfig(), staticLoader(local), remote, nil, nil, nil)

	s := svc.Summarize(context.Background(), article, Options{Strategy: StrategyAuto})

	assert.Equal(t, "local summary", s.Text)
	assert.Equal(t, SourceLocal, s.Source)
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestLocalUnavailableFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalEnabled = false
	svc := NewService(cfg, NewLocalLoader(cfg, nil, nil), nil, nil, nil, nil)

	s := svc.Summarize(context.Background(), article, Options{MaxLength: 5, Strategy: StrategyLocal})

	assert.True(t, s.IsFallback)
	assert.Equal(t, "Go is an open source...", s.Text)
}

func TestExplicitFallbackStrategy(t *testing.T) {
	local := &stubSummarizer{out: "x"}
	svc := NewService(DefaultConfig(), staticLoader(local), nil, nil, nil, nil)

	s := svc.Summarize(context.Background(), article, Options{MaxLength: 3, Strategy: StrategyFallback})
	assert.True(t, s.IsFallback)
	assert.Equal(t, "Go is an...", s.Text)
	assert.Equal(t, int32(0), local.calls.Load())
}

func TestConcurrentRequestsAreCoalesced(t *testing.T) {
	local := &stubSummarizer{out: "shared", delay: 50 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.ChunkSize = 1 << 20
	svc := NewService(cfg, staticLoader(local), nil, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := svc.Summarize(context.Background(), article, Options{})
			assert.Equal(t, "shared", s.Text)
		}()
	}
	wg.Wait()

	assert.Less(t, local.calls.Load(), int32(8))
}

func TestCallerDeadlineFallsBackWhileRunCompletes(t *testing.T) {
	c := newBadgerCache(t)
	remote := &stubSummarizer{out: "remote summary", delay: 500 * time.Millisecond}
	svc := NewService(DefaultConfig(), staticLoader(&stubSummarizer{out: "local"}), remote, c, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	s := svc.Summarize(ctx, article, Options{MaxLength: 5, Strategy: StrategyRemote})

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.True(t, s.IsFallback)
	assert.Equal(t, SourceFallback, s.Source)

	// The shared run outlives the caller and fills the cache.
	assert.Eventually(t, func() bool {
		hit := svc.Summarize(context.Background(), article, Options{MaxLength: 5, Strategy: StrategyRemote})
		return hit.Cached && hit.Text == "remote summary"
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestSimplifyUsesShortBudget(t *testing.T) {
	long := strings.Repeat("Sentence number one talks about kimo. ", 60)
	svc := NewService(DefaultConfig(), NewLocalLoader(DefaultConfig(), nil, nil), nil, nil, nil, nil)

	s := svc.Simplify(context.Background(), long)
	assert.False(t, s.IsFallback)
	assert.LessOrEqual(t, len(strings.Fields(s.Text)), 100)
}

func TestRemoteSummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req remoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 42, req.MaxLength)

		_ = json.NewEncoder(w).Encode(remoteResponse{Summary: "remote says hi"})
	}))
	defer srv.Close()

	r, err := NewRemoteSummarizer(RemoteConfig{Endpoint: srv.URL, APIKey: "secret"}, srv.Client(), nil)
	require.NoError(t, err)

	out, err := r.Summarize(context.Background(), article, 42)
	require.NoError(t, err)
	assert.Equal(t, "remote says hi", out)
}

func TestRemoteBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewRemoteSummarizer(RemoteConfig{Endpoint: srv.URL, FailureThreshold: 2, OpenTimeout: time.Hour}, srv.Client(), nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := r.Summarize(context.Background(), article, 10)
		assert.ErrorIs(t, err, errs.ErrModelUnavailable)
	}
	assert.Equal(t, "open", r.State())

	_, err = r.Summarize(context.Background(), article, 10)
	assert.ErrorIs(t, err, errs.ErrModelUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRemoteRequiresEndpoint(t *testing.T) {
	_, err := NewRemoteSummarizer(RemoteConfig{}, nil, nil)

	var initErr *errs.SummarizerInitError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, errs.ErrModelUnavailable)
}

func TestFrequencySummarizer(t *testing.T) {
	s := NewFrequencySummarizer(0.3)

	out, err := s.Summarize(context.Background(), article, 15)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(strings.Fields(out)), 15)
	assert.Contains(t, out, "Go")

	// A budget smaller than any sentence still yields words.
	out, err = s.Summarize(context.Background(), "This single sentence is rather long for the budget.", 3)
	require.NoError(t, err)
	assert.Equal(t, "This single sentence", out)
}

func TestChunkText(t *testing.T) {
	assert.Equal(t, []string{"aaa bbb", "ccc"}, chunkText("aaa bbb ccc", 7))
	assert.Equal(t, []string{"toolongword", "x"}, chunkText("toolongword x", 5))
	assert.Nil(t, chunkText("   ", 10))
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyRemote, ParseStrategy("cloud"))
	assert.Equal(t, StrategyLocal, ParseStrategy("LOCAL"))
	assert.Equal(t, StrategyAuto, ParseStrategy("whatever"))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("abc", 10), CacheKey("abc", 10))
	assert.NotEqual(t, CacheKey("abc", 10), CacheKey("abc", 11))
	assert.NotEqual(t, CacheKey("abc", 10), CacheKey("abd", 10))
}

// staticLoader wraps s in a loader that never fails.
func staticLoader(s Summarizer) *model.Loader[Summarizer] {
	return model.NewLoader[Summarizer]("stub", func(context.Context, model.ProgressFunc) (Summarizer, error) {
		return s, nil
	})
}
