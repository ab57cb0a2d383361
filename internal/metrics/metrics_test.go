package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.CacheResult("hit")
		m.CacheEvicted(3)
		m.ObserveRank(time.Millisecond)
		m.FailOpen("history")
		m.EventQueued()
		m.EventDropped()
		m.ObserveProvider("wikipedia", "ok", time.Millisecond)
		m.SummaryServed("local")
		m.Swept("interactions", 2)
		m.ObserveHTTP("/api/search", "200", time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.CacheResult("hit")
	m.CacheResult("hit")
	m.CacheResult("miss")
	m.CacheEvicted(2)
	m.CacheEvicted(0)
	m.Swept("cache_entries", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheEvictions))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepDeleted.WithLabelValues("cache_entries")))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()

	a.EventDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.TrackerDropped))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TrackerDropped))
}
