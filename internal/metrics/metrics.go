// Package metrics provides Prometheus metrics for the analysis lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AnalysesStarted counts records moved to processing.
var AnalysesStarted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "expose",
	Name:      "analyses_started_total",
	Help:      "Total analyses moved to processing.",
})

// AnalysesCompleted counts completed analyses by whether the output was structured.
var AnalysesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "expose",
	Name:      "analyses_completed_total",
	Help:      "Total analyses completed.",
}, []string{"structured"})

// AnalysesFailed counts failed analyses by the stage that failed.
var AnalysesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "expose",
	Name:      "analyses_failed_total",
	Help:      "Total analyses marked failed.",
}, []string{"stage"})

// EnrichmentSkipped counts enrichment branches that produced nothing.
var EnrichmentSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "expose",
	Name:      "enrichment_skipped_total",
	Help:      "Total enrichment branches that produced nothing.",
}, []string{"branch"})

// ExternalCallLatency tracks outbound call duration by service.
var ExternalCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "expose",
	Name:      "external_call_seconds",
	Help:      "External service call duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
}, []string{"service"})

// ObserveCall records the time since start against service.
func ObserveCall(service string, start time.Time) {
	ExternalCallLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// Bool renders a label value for a boolean.
func Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
