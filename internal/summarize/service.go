package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/khanglvm/kimo/internal/cache"
	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
	"github.com/khanglvm/kimo/internal/model"
)

// Strategy selects which backend serves a request.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyLocal    Strategy = "local"
	StrategyRemote   Strategy = "remote"
	StrategyFallback Strategy = "fallback"
)

// ParseStrategy maps s to a Strategy; unknown values become auto.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyLocal:
		return StrategyLocal
	case StrategyRemote, "cloud":
		return StrategyRemote
	case StrategyFallback:
		return StrategyFallback
	default:
		return StrategyAuto
	}
}

// Sources reported in Summary.Source.
const (
	SourceRemote   = "remote"
	SourceLocal    = "local"
	SourceFallback = "fallback"
)

const (
	fallbackWarning = "Summary quality may be reduced"
	simplifyLength  = 100
)

// Config tunes the Service.
type Config struct {
	Strategy         string        `koanf:"strategy" validate:"omitempty,oneof=auto local remote cloud fallback"`
	DefaultMaxLength int           `koanf:"default_max_length" validate:"gte=0"`
	MinInputLength   int           `koanf:"min_input_length" validate:"gte=0"`
	ChunkSize        int           `koanf:"chunk_size" validate:"gte=0"`
	MinLengthRatio   float64       `koanf:"min_length_ratio" validate:"gte=0,lte=1"`
	CacheTTL         time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gte=0"`
	LocalEnabled     bool          `koanf:"local_enabled"`
	Remote           RemoteConfig  `koanf:"remote"`
}

// DefaultConfig returns the standard summarizer settings.
func DefaultConfig() Config {
	return Config{
		Strategy:         string(StrategyAuto),
		DefaultMaxLength: 150,
		MinInputLength:   10,
		ChunkSize:        512,
		MinLengthRatio:   0.3,
		CacheTTL:         7 * 24 * time.Hour,
		Timeout:          30 * time.Second,
		LocalEnabled:     true,
	}
}

// Options are per-request settings.
type Options struct {
	MaxLength int
	Strategy  Strategy
}

// Summary is the outcome of a request. It always carries text.
type Summary struct {
	Text       string `json:"summary"`
	IsFallback bool   `json:"is_fallback"`
	Warning    string `json:"warning,omitempty"`
	Source     string `json:"source"`
	Cached     bool   `json:"cached"`
}

type cachedSummary struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Service routes summarization requests across backends.
type Service struct {
	cfg     Config
	local   *model.Loader[Summarizer]
	remote  Summarizer
	cache   *cache.Cache
	log     logger.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewService creates a Service. local, remote and c may each be nil.
func NewService(cfg Config, local *model.Loader[Summarizer], remote Summarizer, c *cache.Cache, log logger.Logger, m *metrics.Metrics) *Service {
	def := DefaultConfig()
	if cfg.DefaultMaxLength <= 0 {
		cfg.DefaultMaxLength = def.DefaultMaxLength
	}
	if cfg.MinInputLength <= 0 {
		cfg.MinInputLength = def.MinInputLength
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		cfg:     cfg,
		local:   local,
		remote:  remote,
		cache:   c,
		log:     log,
		metrics: m,
	}
}

// NewLocalLoader returns a loader that builds the in-process summarizer on
// first use. When disabled every load fails with a SummarizerInitError.
func NewLocalLoader(cfg Config, log logger.Logger, progress model.ProgressFunc) *model.Loader[Summarizer] {
	init := func(ctx context.Context, report model.ProgressFunc) (Summarizer, error) {
		if !cfg.LocalEnabled {
			return nil, &errs.SummarizerInitError{Backend: "local", Err: errors.New("local summarizer disabled")}
		}
		report(0.5, "building vocabulary")
		return NewFrequencySummarizer(cfg.MinLengthRatio), nil
	}

	opts := []model.Option[Summarizer]{model.WithLogger[Summarizer](log)}
	if progress != nil {
		opts = append(opts, model.WithProgress[Summarizer](progress))
	}
	return model.NewLoader[Summarizer]("summarizer", init, opts...)
}

// Simplify summarizes text to a short, 100-word form.
func (s *Service) Simplify(ctx context.Context, text string) Summary {
	return s.Summarize(ctx, text, Options{MaxLength: simplifyLength})
}

// Summarize never fails. Short input, an explicit fallback strategy and
// exhausted backends all produce a truncation of the input.
func (s *Service) Summarize(ctx context.Context, text string, opts Options) Summary {
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = s.cfg.DefaultMaxLength
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = ParseStrategy(s.cfg.Strategy)
	}

	if len([]rune(strings.TrimSpace(text))) < s.cfg.MinInputLength {
		s.log.Debug("input too short to summarize", logger.Int("length", len(text)))
		return s.fallback(text, maxLength)
	}
	if strategy == StrategyFallback {
		return s.fallback(text, maxLength)
	}

	key := CacheKey(text, maxLength)
	if hit, ok := s.lookup(ctx, key); ok {
		s.metrics.SummaryServed("cache")
		return Summary{Text: hit.Text, Source: hit.Source, Cached: true}
	}

	ch := s.group.DoChan(key+"|"+string(strategy), func() (interface{}, error) {
		// Detached so one caller giving up does not fail the others.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer cancel()

		summary, source, err := s.run(runCtx, text, maxLength, strategy)
		if err != nil {
			return nil, err
		}
		result := cachedSummary{Text: summary, Source: source}
		s.store(runCtx, key, result)
		return result, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.log.Warn("summarization deadline exceeded, using fallback", logger.Error(ctx.Err()))
		return s.fallback(text, maxLength)
	}
	if res.Err != nil {
		s.log.Warn("summarization failed, using fallback", logger.Error(res.Err))
		return s.fallback(text, maxLength)
	}
	v := res.Val
	result := v.(cachedSummary)
	s.metrics.SummaryServed(result.Source)
	return Summary{Text: result.Text, Source: result.Source}
}

func (s *Service) run(ctx context.Context, text string, maxLength int, strategy Strategy) (string, string, error) {
	useRemote := strategy == StrategyRemote || (strategy == StrategyAuto && s.remote != nil)

	if useRemote {
		if s.remote == nil {
			s.log.Warn("remote summarizer not configured, using local")
		} else {
			summary, err := s.remote.Summarize(ctx, text, maxLength)
			if err == nil {
				return summary, SourceRemote, nil
			}
			s.log.Warn("remote summarization failed, using local", logger.Error(err))
		}
	}

	summary, err := s.processLocal(ctx, text, maxLength)
	if err != nil {
		return "", "", err
	}
	return summary, SourceLocal, nil
}

// processLocal summarizes each chunk of text in parallel and joins the
// parts. Each chunk gets an equal share of the word budget.
func (s *Service) processLocal(ctx context.Context, text string, maxLength int) (string, error) {
	if s.local == nil {
		return "", fmt.Errorf("%w: no local summarizer", errs.ErrModelUnavailable)
	}

	summarizer, err := s.local.Load(ctx)
	if err != nil {
		return "", err
	}

	chunks := chunkText(text, s.cfg.ChunkSize)
	budget := maxLength / len(chunks)
	if budget < 1 {
		budget = 1
	}

	parts := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			part, err := summarizer.Summarize(gctx, chunk, budget)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	words := strings.Fields(strings.Join(parts, " "))
	if len(words) == 0 {
		return "", fmt.Errorf("%w: local summarizer produced no output", errs.ErrModelUnavailable)
	}
	if len(words) > maxLength {
		words = words[:maxLength]
	}
	return strings.Join(words, " "), nil
}

func (s *Service) fallback(text string, maxLength int) Summary {
	s.metrics.SummaryServed(SourceFallback)
	return Summary{
		Text:       Fallback(text, maxLength),
		IsFallback: true,
		Warning:    fallbackWarning,
		Source:     SourceFallback,
	}
}

func (s *Service) lookup(ctx context.Context, key string) (cachedSummary, bool) {
	if s.cache == nil {
		return cachedSummary{}, false
	}
	hit, ok, err := cache.GetJSON[cachedSummary](ctx, s.cache, key)
	if err != nil {
		s.log.Debug("summary cache unavailable", logger.Error(err))
		return cachedSummary{}, false
	}
	return hit, ok
}

func (s *Service) store(ctx context.Context, key string, v cachedSummary) {
	if s.cache == nil {
		return
	}
	if err := cache.PutJSON(ctx, s.cache, key, v, s.cfg.CacheTTL); err != nil {
		s.log.Debug("failed to cache summary", logger.Error(err))
	}
}

// CacheKey identifies a summary of text at maxLength.
func CacheKey(text string, maxLength int) string {
	sum := sha256.Sum256([]byte(text))
	return "summary:" + hex.EncodeToString(sum[:16]) + ":" + strconv.Itoa(maxLength)
}
