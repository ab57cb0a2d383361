/*
Package metrics holds the Prometheus collectors for kimo.

Collectors are registered on a private registry so that several instances
can coexist in tests. A nil *Metrics is valid and records nothing.
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kimo"

// Metrics groups every collector exported on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	CacheRequests  *prometheus.CounterVec
	CacheEvictions prometheus.Counter

	RankDuration prometheus.Histogram
	RankFailOpen *prometheus.CounterVec

	TrackerQueued  prometheus.Counter
	TrackerDropped prometheus.Counter

	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	SummaryRequests *prometheus.CounterVec

	SweepDeleted *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by result (hit, miss, expired)",
		}, []string{"result"}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Cache entries removed because they expired",
		}),

		RankDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_duration_seconds",
			Help:      "Time spent personalizing one result list",
			Buckets:   prometheus.DefBuckets,
		}),
		RankFailOpen: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_fail_open_total",
			Help:      "Ranking calls that returned the input order unchanged",
		}, []string{"reason"}),

		TrackerQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_events_queued_total",
			Help:      "Interaction events accepted by the tracker",
		}),
		TrackerDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_events_dropped_total",
			Help:      "Interaction events dropped because the queue was full",
		}),

		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_provider_requests_total",
			Help:      "Search provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_provider_duration_seconds",
			Help:      "Search provider latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		SummaryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summaries produced by strategy (cache, local, remote, fallback)",
		}, []string{"strategy"}),

		SweepDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Rows removed by the retention sweeper",
		}, []string{"table"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// CacheResult counts one cache lookup.
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// CacheEvicted counts n evicted entries.
func (m *Metrics) CacheEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictions.Add(float64(n))
}

// ObserveRank records the duration of one ranking call.
func (m *Metrics) ObserveRank(d time.Duration) {
	if m == nil {
		return
	}
	m.RankDuration.Observe(d.Seconds())
}

// FailOpen counts a ranking call that fell back to input order.
func (m *Metrics) FailOpen(reason string) {
	if m == nil {
		return
	}
	m.RankFailOpen.WithLabelValues(reason).Inc()
}

// EventQueued counts an accepted interaction event.
func (m *Metrics) EventQueued() {
	if m == nil {
		return
	}
	m.TrackerQueued.Inc()
}

// EventDropped counts an interaction event lost to a full queue.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.TrackerDropped.Inc()
}

// ObserveProvider records one search provider call.
func (m *Metrics) ObserveProvider(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// SummaryServed counts a summary by the strategy that produced it.
func (m *Metrics) SummaryServed(strategy string) {
	if m == nil {
		return
	}
	m.SummaryRequests.WithLabelValues(strategy).Inc()
}

// Swept counts rows removed from table.
func (m *Metrics) Swept(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SweepDeleted.WithLabelValues(table).Add(float64(n))
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
