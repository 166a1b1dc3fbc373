package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for RecordsIngested.
const (
	KindMetric = "metric"
	KindNews   = "news"

	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

var (
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threatwatch_records_ingested_total",
		Help: "The total number of records seen by ingestion, by kind and outcome",
	}, []string{"kind", "outcome"})

	IngestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threatwatch_ingestion_runs_total",
		Help: "The total number of ingestion runs, by status",
	}, []string{"status"})

	IngestionRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "threatwatch_ingestion_run_duration_seconds",
		Help:    "Duration in seconds of a full ingestion run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	ReviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threatwatch_review_decisions_total",
		Help: "The total number of review decisions applied, by decision",
	}, []string{"decision"})
)
