package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every collector unless a caller picks another.
const DefaultNamespace = "levquote"

// NewRegistry returns an isolated registry. Components register against it
// instead of the global default so tests and embedders can run side by side.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

type CacheMetrics struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Coalesced   prometheus.Counter
	Loads       prometheus.Counter
	LoadErrors  prometheus.Counter
	Clears      prometheus.Counter
	LoadLatency prometheus.Histogram
}

// NewCacheMetrics registers cache collectors under namespace_subsystem.
// A nil registerer creates unregistered collectors.
func NewCacheMetrics(reg prometheus.Registerer, namespace, subsystem string) *CacheMetrics {
	f := promauto.With(reg)
	return &CacheMetrics{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hits_total",
			Help:      "Lookups answered from a ready entry",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "misses_total",
			Help:      "Lookups that found no ready entry",
		}),
		Coalesced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "coalesced_total",
			Help:      "Lookups that joined an in-flight load",
		}),
		Loads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loads_total",
			Help:      "Underlying load invocations",
		}),
		LoadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "load_errors_total",
			Help:      "Underlying loads that failed",
		}),
		Clears: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "clears_total",
			Help:      "Number of full cache resets",
		}),
		LoadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "load_latency_seconds",
			Help:      "Latency of underlying loads",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

type QuoteMetrics struct {
	Quotes     *prometheus.CounterVec
	Rejections *prometheus.CounterVec
}

func NewQuoteMetrics(reg prometheus.Registerer, namespace string) *QuoteMetrics {
	f := promauto.With(reg)
	return &QuoteMetrics{
		Quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "built_total",
			Help:      "Quotes built, by direction",
		}, []string{"direction"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "rejected_total",
			Help:      "Quote requests rejected, by reason",
		}, []string{"reason"}),
	}
}

type RebalanceMetrics struct {
	Solves   *prometheus.CounterVec
	Failures *prometheus.CounterVec
}

func NewRebalanceMetrics(reg prometheus.Registerer, namespace string) *RebalanceMetrics {
	f := promauto.With(reg)
	return &RebalanceMetrics{
		Solves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "solves_total",
			Help:      "Successful rebalance solves, by direction",
		}, []string{"direction"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebalance",
			Name:      "failures_total",
			Help:      "Rejected or unsolvable rebalance requests, by reason",
		}, []string{"reason"}),
	}
}
