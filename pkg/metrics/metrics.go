// Package metrics holds the process-wide Prometheus instrumentation for
// the ingest pipeline. Counters only; the pipeline has no latency SLOs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_attempts_total",
		Help: "HTTP fetch attempts, including retries.",
	})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_retries_total",
		Help: "Fetch attempts beyond the first for a given URL.",
	})

	ItemsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_items_persisted_total",
		Help: "Documents written to the store.",
	})

	DuplicateSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_duplicate_skips_total",
		Help: "Candidates skipped because their identity key was already ingested.",
	})

	ItemFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_item_failures_total",
		Help: "Item-level failures by pipeline stage.",
	}, []string{"stage"})
)

// Handler exposes the default registry, mounted at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
