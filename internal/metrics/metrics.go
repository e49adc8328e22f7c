// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quill"

var (
	Registry = prometheus.NewRegistry()

	// CacheRequests counts page cache lookups by cache name and result (hit, miss, error).
	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Page cache lookups by cache and result.",
	}, []string{"cache", "result"})

	// NumberRetries counts chapter inserts that lost a number race and recomputed.
	NumberRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chapter_number_retries_total",
		Help:      "Chapter number allocations retried after a duplicate key.",
	})

	// PropagationFailures counts timestamp propagation steps that failed, by ancestor (volume, book).
	PropagationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "propagation_failures_total",
		Help:      "Ancestor date_updated propagation steps that failed.",
	}, []string{"ancestor"})

	// IndexFailures counts derived search data refreshes that failed, by index (book_vector, chapter).
	IndexFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_failures_total",
		Help:      "Search index refreshes that failed.",
	}, []string{"index"})

	// HTTPRequests counts served requests by method and status code.
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status.",
	}, []string{"method", "status"})

	// HTTPDuration observes request latency by method.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CacheRequests,
		NumberRetries,
		PropagationFailures,
		IndexFailures,
		HTTPRequests,
		HTTPDuration,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
