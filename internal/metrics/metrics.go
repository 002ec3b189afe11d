// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Finding lifecycle metrics
	FindingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clousec_finding_transitions_total",
			Help: "Total number of reconciled observations by service and transition",
		},
		[]string{"service", "transition"},
	)

	ReconcileErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clousec_reconcile_errors_total",
			Help: "Total number of observations that failed after store retries",
		},
		[]string{"service"},
	)

	// Scan metrics
	ResourceScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clousec_resource_scans_total",
			Help: "Total number of resource scans by kind and outcome",
		},
		[]string{"kind", "outcome"}, // ok, not_found, error
	)

	SweepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clousec_sweep_duration_seconds",
			Help:    "Duration of full scan sweeps by service",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service"},
	)

	// Event ingestion metrics
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clousec_events_received_total",
			Help: "Total number of cloud events received by transport and outcome",
		},
		[]string{"transport", "outcome"}, // routed, unroutable, invalid
	)

	DispatchDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clousec_dispatch_dropped_total",
			Help: "Total number of scan targets dropped because the dispatch queue was full",
		},
	)

	DispatchDebouncedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clousec_dispatch_debounced_total",
			Help: "Total number of scan targets coalesced with an identical queued target",
		},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clousec_dispatch_queue_depth",
			Help: "Number of scan targets waiting in the dispatch queue",
		},
	)
)

// RecordTransition counts one reconciled observation
func RecordTransition(service, transition string) {
	FindingTransitionsTotal.WithLabelValues(service, transition).Inc()
}

// RecordReconcileError counts an observation that could not be stored
func RecordReconcileError(service string) {
	ReconcileErrorsTotal.WithLabelValues(service).Inc()
}

// RecordResourceScan counts one resource scan
func RecordResourceScan(kind, outcome string) {
	ResourceScansTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSweep records the duration of a full sweep of one service
func RecordSweep(service string, d time.Duration) {
	SweepDurationSeconds.WithLabelValues(service).Observe(d.Seconds())
}

// RecordEvent counts one inbound event
func RecordEvent(transport, outcome string) {
	EventsReceivedTotal.WithLabelValues(transport, outcome).Inc()
}
