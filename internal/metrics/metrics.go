// Package metrics implements the core's operational Prometheus metrics —
// distinct from the spec §4.7 per-task DataPoint metrics_tick mechanism,
// which is an executor-level domain concept (internal/executor); these are
// the process-wide counters/gauges an operator scrapes, registered through
// promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks current ring-buffer depth per executor and queue
	// role (receive|transfer).
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamcore_queue_depth",
			Help: "Current number of queued batches",
		},
		[]string{"executor", "queue"},
	)

	// QueueWatermarkCrossingsTotal counts edge-triggered high/low watermark
	// crossings per queue.
	QueueWatermarkCrossingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcore_queue_watermark_crossings_total",
			Help: "Total number of watermark edge crossings",
		},
		[]string{"executor", "queue", "direction"},
	)

	// BackpressureActive tracks the current backpressure flag per executor
	// (0=inactive, 1=active).
	BackpressureActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamcore_backpressure_active",
			Help: "Current backpressure flag state (0=inactive, 1=active)",
		},
		[]string{"executor"},
	)

	// TuplesEmittedTotal counts tuples emitted by a component on a stream.
	TuplesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcore_tuples_emitted_total",
			Help: "Total number of tuples emitted",
		},
		[]string{"component", "stream"},
	)

	// TuplesRoutedTotal counts tuples routed to a downstream task by grouping
	// kind.
	TuplesRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcore_tuples_routed_total",
			Help: "Total number of tuples routed through a grouper",
		},
		[]string{"stream", "grouping"},
	)

	// TickCountTotal counts system ticks (__tick) delivered to bolt tasks,
	// per executor. Metrics ticks and spout ticks are not counted.
	TickCountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcore_tick_count_total",
			Help: "Total number of tick tuples delivered",
		},
		[]string{"executor", "stream"},
	)

	// ExecutorDispatchLatencySeconds measures tuple_action dispatch latency.
	ExecutorDispatchLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamcore_executor_dispatch_latency_seconds",
			Help:    "Latency of tuple_action dispatch in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		},
		[]string{"component"},
	)

	// LoadRegistrySize tracks the number of downstream tasks with a recorded
	// load sample, per stream.
	LoadRegistrySize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamcore_load_registry_size",
			Help: "Current number of tasks tracked in a stream's load registry",
		},
		[]string{"stream"},
	)

	// ExecutorStatusGauge reports one of the ExecutorStatus* values per
	// executor.
	ExecutorStatusGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamcore_executor_status",
			Help: "Current executor lifecycle state (0=stopped, 1=running, 2=error)",
		},
		[]string{"component"},
	)
)

// ExecutorStatus is a numeric encoding for executor lifecycle state gauges.
const (
	ExecutorStatusStopped = 0
	ExecutorStatusRunning = 1
	ExecutorStatusError   = 2
)
