package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsAggregatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_events_total",
			Help: "Count of interaction events folded into rollups.",
		},
	)

	IncrementsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregate_increments_applied_total",
			Help: "Count of rollup key increments applied, by rollup kind.",
		},
		[]string{"rollup"},
	)

	KeyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregate_key_failures_total",
			Help: "Count of rollup key increments skipped after retry, by rollup kind.",
		},
		[]string{"rollup"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsAggregatedTotal,
		IncrementsAppliedTotal,
		KeyFailuresTotal,
	)
}
