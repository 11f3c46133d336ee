package replicate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_records_applied_total",
			Help: "Count of CDC records processed by entity_type and outcome.",
		},
		[]string{"entity_type", "outcome"},
	)

	InvalidRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cdc_invalid_records_total",
			Help: "Count of CDC records dropped as malformed.",
		},
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdc_dead_letters_total",
			Help: "Count of CDC records routed to the dead-letter table.",
		},
		[]string{"entity_type"},
	)
)

func init() {
	prometheus.MustRegister(
		RecordsAppliedTotal,
		InvalidRecordsTotal,
		DeadLettersTotal,
	)
}
