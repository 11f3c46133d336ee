package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_source_failures_total",
			Help: "Count of candidate source failures by source.",
		},
		[]string{"source"},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_cache_hits_total",
			Help: "Count of feed requests served from the candidate cache.",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_cache_misses_total",
			Help: "Count of feed requests that re-ranked from storage.",
		},
	)

	InvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_cache_invalidations_total",
			Help: "Count of post-level cache invalidations applied.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SourceFailuresTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		InvalidationsTotal,
	)
}
