// Package metrics registers the Prometheus collectors shared across the
// cache, identity and HTTP layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts Fetch calls served from a fresh cache entry.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadup_cache_hits_total",
		Help: "Number of cache reads served without hitting the store.",
	})

	// CacheMisses counts Fetch calls that ran the underlying fetcher.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadup_cache_misses_total",
		Help: "Number of cache reads that ran the underlying fetcher.",
	})

	// CacheInvalidations counts entries marked stale.
	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadup_cache_invalidations_total",
		Help: "Number of cache entries marked stale.",
	})

	// Mutations counts optimistic mutations by outcome.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadup_mutations_total",
		Help: "Number of optimistic mutations by outcome.",
	}, []string{"outcome"})

	// IdentityChecks counts identity provider round trips actually made.
	IdentityChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadup_identity_checks_total",
		Help: "Number of identity checks issued to the provider.",
	})

	// IdentityDeduped counts identity lookups answered from the
	// per-request cache instead of the provider.
	IdentityDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadup_identity_deduped_total",
		Help: "Number of identity lookups served from the request cache.",
	})

	// RequestDuration observes HTTP request latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "squadup_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
