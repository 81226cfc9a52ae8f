package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and indexing metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchcore",
			Name:      "search_requests_total",
			Help:      "Total search requests by resolved mode and outcome",
		},
		[]string{"mode", "status"},
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchcore",
			Name:      "search_request_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	IndexedDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchcore",
			Name:      "indexed_documents_total",
			Help:      "Documents written to the search index",
		},
		[]string{"operation", "status"}, // operation: index/delete/bulk
	)
)

// RegisterSearchMetrics registers search metrics with the default registry.
func RegisterSearchMetrics() {
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchRequestDuration,
		IndexedDocumentsTotal,
	)
}
