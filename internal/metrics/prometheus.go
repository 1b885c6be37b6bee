package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	EngineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickersense_engine_runs_total",
			Help: "Total number of aggregate/rank executions",
		},
		[]string{"op", "status"}, // op: aggregate|rank, status: success|error
	)

	EngineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tickersense_engine_duration_seconds",
			Help:    "Aggregate/rank execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)

	SummariesLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tickersense_summaries_last_run",
			Help: "Number of daily summaries written by the last aggregation",
		},
	)

	// Ingestion metrics
	MentionsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickersense_mentions_ingested_total",
			Help: "Total number of mentions stored",
		},
		[]string{"source"},
	)

	MentionsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickersense_mentions_skipped_total",
			Help: "Total number of raw items or mentions dropped during ingestion",
		},
		[]string{"source", "reason"}, // reason: duplicate|no_tickers|delivery_error|store_error|invalid
	)
)

func init() {
	prometheus.MustRegister(
		EngineRuns,
		EngineDuration,
		SummariesLastRun,
		MentionsIngested,
		MentionsSkipped,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records one engine operation.
func ObserveRun(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EngineRuns.WithLabelValues(op, status).Inc()
	EngineDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
