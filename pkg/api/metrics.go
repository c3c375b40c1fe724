package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// savedKillmails counts killmails accepted by /killmail/save.
	savedKillmails = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zkbinfo_saved_killmails_total",
			Help: "Total number of killmails accepted for storage",
		},
	)

	// queryTotal counts read queries by operation and subject kind.
	queryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkbinfo_queries_total",
			Help: "Total number of read queries served",
		},
		[]string{"operation", "subject"},
	)

	// requestErrors counts failed requests by error class.
	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkbinfo_request_errors_total",
			Help: "Total number of requests that failed, by error class",
		},
		[]string{"class"},
	)
)

func init() {
	prometheus.MustRegister(savedKillmails)
	prometheus.MustRegister(queryTotal)
	prometheus.MustRegister(requestErrors)
}
