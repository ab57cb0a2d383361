package personalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/metrics"
	"github.com/khanglvm/kimo/internal/storage"
)

const (
	defaultRetention     = 30 * 24 * time.Hour
	defaultSweepInterval = time.Hour
)

// Purger removes expired cache entries. *cache.Cache satisfies it.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Cutoff       time.Time `json:"cutoff"`
	Interactions int64     `json:"interactions_deleted"`
	CacheEntries int64     `json:"cache_entries_purged"`
}

// Sweeper enforces the history retention window and purges stale cache
// entries. Each table is cleaned by a single statement, so concurrent
// readers observe either the state before or after a sweep.
type Sweeper struct {
	history   storage.HistoryStore
	cache     Purger
	retention time.Duration
	interval  time.Duration
	log       logger.Logger
	metrics   *metrics.Metrics

	// Now is the clock used to compute the cutoff.
	Now func() time.Time
}

// NewSweeper creates a Sweeper. Either history or cache may be nil.
func NewSweeper(history storage.HistoryStore, cache Purger, retention, interval time.Duration, log logger.Logger, m *metrics.Metrics) *Sweeper {
	if retention <= 0 {
		retention = defaultRetention
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Sweeper{
		history:   history,
		cache:     cache,
		retention: retention,
		interval:  interval,
		log:       log,
		metrics:   m,
		Now:       time.Now,
	}
}

// Sweep runs one pass. It is idempotent: a second run with the same clock
// deletes nothing.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Cutoff: s.Now().Add(-s.retention)}
	var errList []error

	if s.history != nil {
		n, err := s.history.DeleteInteractionsBefore(ctx, report.Cutoff)
		if err != nil {
			errList = append(errList, fmt.Errorf("failed to prune interactions: %w", err))
		} else {
			report.Interactions = n
			s.metrics.Swept("interactions", n)
		}
	}

	if s.cache != nil {
		n, err := s.cache.Purge(ctx)
		if err != nil {
			errList = append(errList, fmt.Errorf("failed to purge cache: %w", err))
		} else {
			report.CacheEntries = n
			s.metrics.Swept("cache_entries", n)
		}
	}

	return report, errors.Join(errList...)
}

// String implements fmt.Stringer for supervisor logs.
func (s *Sweeper) String() string {
	return "retention-sweeper"
}

// Serve sweeps immediately and then on every interval until ctx is done.
// It implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		report, err := s.Sweep(ctx)
		if err != nil {
			s.log.Warn("sweep failed", logger.Error(err))
		} else {
			s.log.Info("sweep complete",
				logger.Int64("interactions_deleted", report.Interactions),
				logger.Int64("cache_entries_purged", report.CacheEntries),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
