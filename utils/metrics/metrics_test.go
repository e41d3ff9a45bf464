package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMetrics(t *testing.T) {
	reg := NewRegistry()
	metrics := NewCacheMetrics(reg, "test", "prices")
	assert.NotNil(t, metrics)

	metrics.Hits.Inc()
	metrics.Loads.Add(2)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Hits))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Loads))

	metrics.LoadLatency.Observe(0.01)
	count, err := testutil.GatherAndCount(reg, "test_prices_load_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCacheMetricsUnregistered(t *testing.T) {
	// nil registerer must not touch the global default
	a := NewCacheMetrics(nil, "test", "dup")
	b := NewCacheMetrics(nil, "test", "dup")
	a.Misses.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.Misses))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.Misses))
}

func TestQuoteMetrics(t *testing.T) {
	metrics := NewQuoteMetrics(NewRegistry(), "test")

	metrics.Quotes.WithLabelValues("invest").Inc()
	metrics.Rejections.WithLabelValues("parse").Inc()
	metrics.Rejections.WithLabelValues("parse").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Quotes.WithLabelValues("invest")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Rejections.WithLabelValues("parse")))
}

func TestRebalanceMetrics(t *testing.T) {
	metrics := NewRebalanceMetrics(NewRegistry(), "test")

	metrics.Solves.WithLabelValues("down").Inc()
	metrics.Failures.WithLabelValues("unsolvable").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Solves.WithLabelValues("down")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Failures.WithLabelValues("unsolvable")))
}
