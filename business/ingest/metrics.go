package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Count of interaction events appended to the event log by action.",
		},
		[]string{"action"},
	)

	InvalidPayloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_invalid_payloads_total",
			Help: "Count of bus messages dropped as malformed.",
		},
	)

	DuplicateEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_duplicate_events_total",
			Help: "Count of events skipped inside the dedup window.",
		},
	)

	DedupCheckFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_dedup_check_failures_total",
			Help: "Count of dedup store failures (events passed through).",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsIngestedTotal,
		InvalidPayloadsTotal,
		DuplicateEventsTotal,
		DedupCheckFailuresTotal,
	)
}
