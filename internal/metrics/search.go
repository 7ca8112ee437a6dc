package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and ingestion Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fusiondex",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds by resolved mode",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"mode"},
	)

	DocumentWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusiondex",
			Name:      "document_writes_total",
			Help:      "Document writes by operation and outcome",
		},
		[]string{"action", "status"},
	)

	ImportDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusiondex",
			Name:      "import_documents_total",
			Help:      "Documents processed by batch import",
		},
		[]string{"status"}, // "success" / "error"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and ingestion metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(DocumentWritesTotal)
	prometheus.MustRegister(ImportDocumentsTotal)
	searchMetricsRegistered = true
}
