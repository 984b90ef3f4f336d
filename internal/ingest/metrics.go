package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "ingest",
		Name:      "submissions_total",
		Help:      "Metric submissions received over NATS, by outcome.",
	}, []string{"outcome"})

	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "ingest",
		Name:      "run_events_published_total",
		Help:      "RunCompleted events published to NATS.",
	})
)
