package learner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "learner",
		Name:      "metrics_recorded_total",
		Help:      "Metric submissions scored and stored, by content type.",
	}, []string{"content_type"})

	promotions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "learner",
		Name:      "promotions_total",
		Help:      "Artifacts copied into the style examples collection.",
	})

	recordsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contentfactory",
		Subsystem: "learner",
		Name:      "records_swept_total",
		Help:      "Performance records removed by the retention sweep.",
	})
)
