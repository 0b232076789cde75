package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics - Track ingestion volume
var (
	VersionsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerindex_versions_committed_total",
		Help: "Total number of ledger versions committed to the store",
	})

	BatchesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgerindex_batches_committed_total",
		Help: "Total number of batches committed to the store",
	})

	TransactionsByType = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerindex_transactions_committed_total",
			Help: "Total number of committed transactions by type class",
		},
		[]string{"class"},
	)
)

// Performance metrics - Track ingestion speed and latency
var (
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerindex_fetch_duration_seconds",
		Help:    "Time taken to fetch one batch from the remote ledger",
		Buckets: prometheus.DefBuckets,
	})

	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerindex_commit_duration_seconds",
		Help:    "Time taken to commit one batch to the store",
		Buckets: prometheus.DefBuckets,
	})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerindex_batch_size",
		Help:    "Number of rows in each committed batch",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
	})

	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerindex_snapshot_duration_seconds",
		Help:    "Time taken to write a rotation snapshot",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
)

// State metrics - Track current system state
var (
	RemoteHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerindex_remote_head_version",
		Help: "Latest version reported by the remote ledger",
	})

	LocalHead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerindex_local_head_version",
		Help: "Latest version committed to the store",
	})

	Lag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledgerindex_lag_versions",
		Help: "Number of versions the store is behind the remote ledger",
	})

	EngineState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerindex_engine_state",
			Help: "Current sync engine state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)
)

// Error metrics - Track failures
var (
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerindex_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)

	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerindex_anomalies_total",
			Help: "Total number of data anomalies detected by kind",
		},
		[]string{"kind"},
	)

	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerindex_rotations_total",
			Help: "Total number of store rotations by outcome",
		},
		[]string{"outcome"},
	)
)
