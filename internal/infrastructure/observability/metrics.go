package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transfers_total",
			Help: "Total number of transfer attempts by outcome",
		},
		[]string{"outcome"},
	)

	ScheduledContributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savings_scheduled_contributions_total",
			Help: "Total number of scheduled savings contributions by outcome",
		},
		[]string{"outcome"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(RepositoryCalls, RepositoryDuration, TransfersTotal, ScheduledContributions)
}
