package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Latency of the feed ranking HTTP handler
	FeedRankLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_rank_latency_seconds",
		Help:    "Latency of the feed ranking handler",
		Buckets: prometheus.DefBuckets,
	})

	// Total number of feed pages served
	FeedRankRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_rank_requests_total",
		Help: "Total number of feed rank requests",
	})
)

func Init() {
	prometheus.MustRegister(
		FeedRankLatency,
		FeedRankRequests,
	)
}
