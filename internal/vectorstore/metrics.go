package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// collectionSize tracks the record count per collection, refreshed on writes and stats.
	collectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "contentfactory",
			Subsystem: "vectorstore",
			Name:      "collection_records",
			Help:      "Number of records per collection",
		},
		[]string{"collection"},
	)

	recordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentfactory",
			Subsystem: "vectorstore",
			Name:      "records_written_total",
			Help:      "Total records upserted per collection",
		},
		[]string{"collection"},
	)

	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentfactory",
			Subsystem: "vectorstore",
			Name:      "queries_total",
			Help:      "Total similarity queries per collection",
		},
		[]string{"collection"},
	)
)
