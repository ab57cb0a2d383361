package personalize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/storage"
)

const (
	// freshnessWindowDays is the age at which a result's freshness hits 0.
	freshnessWindowDays = 30.0

	defaultHistoryTimeout = 2 * time.Second
)

// Personalizer ranks results against the interaction history.
type Personalizer struct {
	history storage.HistoryStore
	log     logger.Logger
	metrics *metrics.Metrics

	// HistoryTimeout bounds the history read of one ranking call.
	HistoryTimeout time.Duration

	// Now is the clock used for decay and freshness.
	Now func() time.Time

	// Relevance, when set, assigns base scores to results once history has
	// been read. A failed ranking never sees it.
	Relevance func(query string, results []search.Result) []search.Result
}

// NewPersonalizer creates a Personalizer. A nil history behaves like an
// unavailable store.
func NewPersonalizer(history storage.HistoryStore, log logger.Logger, m *metrics.Metrics) *Personalizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Personalizer{
		history:        history,
		log:            log,
		metrics:        m,
		HistoryTimeout: defaultHistoryTimeout,
		Now:            time.Now,
	}
}

// Profile builds the current profile from history.
func (p *Personalizer) Profile(ctx context.Context, opts Options) (UserProfile, error) {
	opts = opts.Normalized()
	now := p.Now()
	since := now.Add(-time.Duration(opts.MaxHistoryDays) * 24 * time.Hour)

	if p.history == nil {
		return UserProfile{}, errs.ErrStorageUnavailable
	}

	if p.HistoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.HistoryTimeout)
		defer cancel()
	}

	events, err := p.history.InteractionsSince(ctx, since)
	if err != nil {
		return UserProfile{}, err
	}
	return BuildProfile(events, now, since, opts.DecayFactor), nil
}

// RankResults returns copies of results ordered by final score, each with
// Score replaced and a Breakdown attached. Equal final scores fall back to
// the base score, then to input order.
//
// Ranking fails open: if history cannot be read or scoring panics, the
// input slice is returned as is.
func (p *Personalizer) RankResults(ctx context.Context, results []search.Result, query string, opts Options) (ranked []search.Result) {
	if len(results) == 0 {
		return results
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("ranking panicked, returning original order",
				logger.String("query", query),
				logger.String("panic", fmt.Sprint(r)),
			)
			p.metrics.FailOpen("panic")
			ranked = results
		}
	}()

	profile, err := p.Profile(ctx, opts)
	if err != nil {
		p.log.Warn("history unavailable, returning original order",
			logger.String("query", query),
			logger.Error(err),
		)
		p.metrics.FailOpen(failOpenReason(err))
		return results
	}

	scored := results
	if p.Relevance != nil {
		scored = p.Relevance(query, results)
	}

	ranked = p.score(scored, profile, opts.Normalized())
	p.metrics.ObserveRank(time.Since(start))
	p.log.Debug("ranked results",
		logger.String("query", query),
		logger.Int("results", len(ranked)),
		logger.Int("events", profile.Events),
	)
	return ranked
}

func (p *Personalizer) score(results []search.Result, profile UserProfile, opts Options) []search.Result {
	now := p.Now()
	baseWeight := opts.BaseWeight()

	out := make([]search.Result, len(results))
	for i, r := range results {
		bd := personalScore(r, profile, opts.DomainWeight)
		bd.Base = r.Score
		bd.Freshness = freshness(r.Date, now, opts.UndatedFreshness)

		r.Score = bd.Base*baseWeight + bd.Personal*opts.PersonalizationWeight + bd.Freshness*opts.FreshnessWeight
		r.Breakdown = &bd
		out[i] = r
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Breakdown.Base > out[j].Breakdown.Base
	})
	return out
}

// personalScore sums URL engagement and matched term weights for r.
func personalScore(r search.Result, profile UserProfile, domainWeight float64) search.ScoreBreakdown {
	var bd search.ScoreBreakdown

	if w, ok := profile.URLs[search.NormalizeURL(r.Link)]; ok {
		bd.Click = w.Click
		bd.Dwell = w.Dwell
		bd.Bookmark = w.Bookmark
		bd.Share = w.Share
	}

	text := strings.ToLower(r.Title + " " + r.Description)
	for _, tw := range profile.Terms {
		if strings.Contains(text, tw.Term) {
			bd.Terms += tw.Weight
			bd.MatchedTerms = append(bd.MatchedTerms, tw.Term)
		}
	}

	if domainWeight > 0 {
		bd.Domain = profile.Domains[search.Domain(r.Link)] * domainWeight
	}

	bd.Personal = bd.Click + bd.Dwell + bd.Bookmark + bd.Share + bd.Terms + bd.Domain
	return bd
}

// freshness is 1 for a result published now, falling linearly to 0 at 30
// days. Undated results get the configured default.
func freshness(date, now time.Time, undated float64) float64 {
	if date.IsZero() {
		return undated
	}
	f := 1 - ageDays(date, now)/freshnessWindowDays
	return clamp01(f)
}

func failOpenReason(err error) string {
	var hre *errs.HistoryReadError
	switch {
	case errors.Is(err, errs.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.As(err, &hre):
		return "history_read"
	default:
		return "other"
	}
}
