// Package metrics registers the Prometheus metrics recorded by ingestion and
// chat, and optionally serves them over HTTP next to a readiness probe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric name.
const namespace = "docchat"

// Outcome label values.
const (
	OutcomeIngested = "ingested"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"

	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Metrics holds every Prometheus collector owned by docchat. A single
// instance is created per process; tests create their own against a fresh
// prometheus.Registry so they never touch the default registerer.
type Metrics struct {
	// IngestFilesTotal counts files seen by ingestion runs, partitioned by
	// outcome: "ingested", "skipped" or "failed".
	IngestFilesTotal *prometheus.CounterVec

	// IngestDurationSeconds records the wall-clock duration of whole ingestion runs.
	IngestDurationSeconds prometheus.Histogram

	// ChatTurnsTotal counts answered questions, partitioned by outcome:
	// "ok", "fallback" (nothing relevant stored) or "error".
	ChatTurnsTotal *prometheus.CounterVec

	// ChatDurationSeconds records the time from question to last streamed fragment.
	ChatDurationSeconds *prometheus.HistogramVec

	// RetrievedDocuments records how many passages each question retrieved.
	RetrievedDocuments prometheus.Histogram

	// DocumentsStored is the number of documents in the collection after the
	// last ingestion run.
	DocumentsStored prometheus.Gauge
}

// New registers all metrics against reg and returns the populated Metrics.
// promauto.With(reg) registers into the provided registry rather than the
// global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestFilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files processed by ingestion runs, partitioned by outcome.",
		}, []string{"outcome"}),

		IngestDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of ingestion runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		ChatTurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Questions answered in chat mode, partitioned by outcome.",
		}, []string{"outcome"}),

		ChatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Time from question to the last streamed answer fragment.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		RetrievedDocuments: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "retrieved_documents",
			Help:      "Number of passages retrieved per question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),

		DocumentsStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "documents",
			Help:      "Documents in the collection after the last ingestion run.",
		}),
	}
}

// Discard returns a Metrics registered against a throwaway registry. It lets
// components record unconditionally when no metrics were configured.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
