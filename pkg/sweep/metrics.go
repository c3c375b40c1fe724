package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// sweepRuns counts completed retention sweeps.
	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zkbinfo_sweep_runs_total",
			Help: "Total number of completed retention sweeps",
		},
	)

	// sweepFailures counts sweeps that errored; a failed sweep is
	// retried on the next interval.
	sweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zkbinfo_sweep_failures_total",
			Help: "Total number of failed retention sweeps",
		},
	)

	// sweptRows counts rows purged, labelled by table.
	sweptRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkbinfo_swept_rows_total",
			Help: "Total rows purged by the retention sweeper",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(sweepRuns)
	prometheus.MustRegister(sweepFailures)
	prometheus.MustRegister(sweptRows)
}
