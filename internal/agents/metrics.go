package agents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contentfactory",
		Subsystem: "agents",
		Name:      "completion_duration_seconds",
		Help:      "Latency of completion calls by agent.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"agent"})

	agentCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "agents",
		Name:      "calls_total",
		Help:      "Agent invocations by agent and outcome.",
	}, []string{"agent", "outcome"})
)
