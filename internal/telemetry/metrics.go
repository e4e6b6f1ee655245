package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wbs"

var (
	// ScansTotal counts poll ticks per radio
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of scan ticks per radio",
		},
		[]string{"radio"},
	)

	// ReadErrors counts transient read failures per radio
	ReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Total number of transient radio read errors",
		},
		[]string{"radio"},
	)

	// ObservationsTotal counts observations accepted into a ledger
	ObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total number of observations applied to a ledger",
		},
		[]string{"radio"},
	)

	// ObservationsDropped counts observations discarded before reaching a ledger
	ObservationsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_dropped_total",
			Help:      "Total number of observations dropped",
		},
		[]string{"radio", "reason"},
	)

	// Evictions counts ledger entries removed by timeout
	Evictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of ledger entries evicted by timeout",
		},
		[]string{"radio"},
	)

	// TrackedEntries reports current ledger sizes
	TrackedEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_entries",
			Help:      "Number of entries currently held in each ledger",
		},
		[]string{"radio"},
	)

	// ConnectionAttempts counts auto-connect cycles by outcome
	ConnectionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_attempts_total",
			Help:      "Total number of auto-connect cycles by outcome",
		},
		[]string{"outcome"},
	)

	// SnapshotsExported counts snapshots handed to sinks
	SnapshotsExported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_exported_total",
			Help:      "Total number of snapshots written per kind and result",
		},
		[]string{"kind", "result"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is idempotent.
func InitMetrics() {
	once.Do(func() {
		// Already-registered errors are ignored so tests can call this freely
		prometheus.DefaultRegisterer.Register(ScansTotal)
		prometheus.DefaultRegisterer.Register(ReadErrors)
		prometheus.DefaultRegisterer.Register(ObservationsTotal)
		prometheus.DefaultRegisterer.Register(ObservationsDropped)
		prometheus.DefaultRegisterer.Register(Evictions)
		prometheus.DefaultRegisterer.Register(TrackedEntries)
		prometheus.DefaultRegisterer.Register(ConnectionAttempts)
		prometheus.DefaultRegisterer.Register(SnapshotsExported)
	})
}
