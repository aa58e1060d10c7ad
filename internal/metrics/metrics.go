// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txt2sql_queries_total",
			Help: "Total pipeline runs by classification and outcome.",
		},
		[]string{"classification", "outcome"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txt2sql_sql_rejections_total",
			Help: "SQL candidates rejected by the safety validator, by reason.",
		},
		[]string{"reason"},
	)

	generationAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txt2sql_generation_attempts",
			Help:    "Generation attempts consumed per DATABASE pipeline run.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txt2sql_query_duration_seconds",
			Help:    "End-to-end pipeline latency by classification.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"classification"},
	)
)

func init() {
	prometheus.MustRegister(queriesTotal, rejectionsTotal, generationAttempts, queryDurationSeconds)
}

// ObserveRun records one completed pipeline run.
func ObserveRun(classification string, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	queriesTotal.WithLabelValues(classification, outcome).Inc()
	queryDurationSeconds.WithLabelValues(classification).Observe(elapsed.Seconds())
}

// ObserveRejection records one validator rejection.
func ObserveRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveAttempts records how many generation attempts a run consumed.
func ObserveAttempts(attempts int) {
	generationAttempts.Observe(float64(attempts))
}
