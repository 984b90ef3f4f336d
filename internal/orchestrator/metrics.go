package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "runs",
		Name:      "total",
		Help:      "Content runs by outcome. Failed runs are labelled with the failing stage.",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contentfactory",
		Subsystem: "runs",
		Name:      "stage_duration_seconds",
		Help:      "Wall time per run stage.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"stage"})

	artifactsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "runs",
		Name:      "artifacts_dropped_total",
		Help:      "Artifacts removed from a run, by stage and reason.",
	}, []string{"stage", "reason"})
)
