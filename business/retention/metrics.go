package retention

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RowsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_rows_expired_total",
			Help: "Count of rows physically removed by the retention sweep, by table.",
		},
		[]string{"table"},
	)

	SweepFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_sweep_failures_total",
			Help: "Count of failed retention sweeps.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RowsExpiredTotal,
		SweepFailuresTotal,
	)
}
