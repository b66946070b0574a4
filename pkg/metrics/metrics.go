package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphQLRequests counts gateway requests by outcome (ok|error|partial).
	GraphQLRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopforge_graphql_requests_total",
			Help: "Total number of GraphQL gateway requests",
		},
		[]string{"outcome"},
	)

	// GraphQLLatency measures end-to-end gateway latency per operation kind.
	GraphQLLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopforge_graphql_latency_seconds",
			Help:    "GraphQL request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CacheHits counts cache hits per namespace.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopforge_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses counts cache misses per namespace.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopforge_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// CacheEvictions counts entries removed by sweep, overflow or invalidation.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopforge_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"reason"},
	)

	// StoreLatency measures document store call latency by operation kind.
	// The histogram count doubles as the per-operation call counter.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopforge_store_latency_seconds",
			Help:    "Document store operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// APILatency measures HTTP request latencies on the REST admin surface.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopforge_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
