// Package metrics holds the prometheus collectors shared by the resolver,
// the provider client and the caches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "grocery"

	// Cache lookup results.
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheStale     = "stale"
	CacheStaleMiss = "stale_miss"
)

// CacheLookupsTotal counts result cache lookups.
// [layer, result].
var CacheLookupsTotal = MustRegisterCounterVec(
	"cache",
	"lookups_total",
	"Number of result cache lookups by layer and result.",
	"layer", "result",
)

// ProviderRequestsTotal counts outbound provider requests.
// [operation, status].
var ProviderRequestsTotal = MustRegisterCounterVec(
	"provider",
	"requests_total",
	"Number of provider requests by operation and status.",
	"operation", "status",
)

// ResolutionsTotal counts resolution outcomes.
// [source].
var ResolutionsTotal = MustRegisterCounterVec(
	"resolver",
	"resolutions_total",
	"Number of resolutions by outcome source.",
	"source",
)

// ResolutionDuration tracks how long a single resolution takes.
var ResolutionDuration = MustRegisterHistogram(
	"resolver",
	"resolution_duration_seconds",
	"Duration of single item resolutions in seconds.",
	[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
)

// MustRegisterCounterVec creates and registers a counter vector.
// Must be called from package initialisation.
func MustRegisterCounterVec(subsystem, name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	prometheus.MustRegister(m)
	return m
}

// MustRegisterHistogram creates and registers a histogram.
// Must be called from package initialisation.
func MustRegisterHistogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	m := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	prometheus.MustRegister(m)
	return m
}
