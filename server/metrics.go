package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// walksTotal counts completed /api/simulate walks by outcome.
	walksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightwalk_walks_total",
		Help: "Simulated walks by outcome (completed or stuck)",
	}, []string{"result"})

	walkSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knightwalk_walk_steps",
		Help:    "Requested step count per simulated walk",
		Buckets: prometheus.ExponentialBuckets(1, 10, 8), // 1 to 10M
	})

	walkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knightwalk_walk_duration_seconds",
		Help:    "Wall time per simulated walk including ring analysis",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	liveSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knightwalk_live_steps_total",
		Help: "Moves made by the live walk session",
	})

	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightwalk_request_errors_total",
		Help: "Rejected API requests by endpoint",
	}, []string{"endpoint"})
)
