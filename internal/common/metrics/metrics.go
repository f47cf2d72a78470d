// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "techpack_stage_requests_total",
			Help: "Total number of generation stage requests by outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "techpack_stage_duration_seconds",
			Help:    "Duration of generation stage requests in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage"},
	)

	CreditsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "techpack_credits_consumed_total",
			Help: "Credits recorded by the ledger per stage",
		},
		[]string{"stage"},
	)

	GenerationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "techpack_generations_active",
			Help: "Number of generation runs currently in flight",
		},
	)
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)
