// Package backpressure implements BackpressureCoordinator (spec §4.6):
// wires a queue's watermark callbacks to an executor-scoped atomic flag and
// notifies the worker on each edge crossing, using an abool-guarded flag
// for the high/low edge discipline spec §4.6 requires.
package backpressure

import (
	"github.com/tevino/abool"

	"firestige.xyz/streamcore/internal/metrics"
)

// Notifier is signaled whenever the backpressure flag flips. Typically a
// buffered channel write that the worker's backpressure thread observes.
type Notifier interface {
	NotifyBackpressure(active bool)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(active bool)

func (f NotifierFunc) NotifyBackpressure(active bool) { f(active) }

// Coordinator holds the edge-triggered backpressure flag for one executor.
// It implements queue.WatermarkObserver directly so it can be registered on
// a receive_queue with no adapter.
type Coordinator struct {
	enabled     bool
	flag        *abool.AtomicBool
	notifier    Notifier
	executorTag string
}

// New builds a Coordinator for executorTag (the label its
// streamcore_backpressure_active metric reports under). When enabled is
// false (topology.backpressure.enable unset), HighWaterMark/LowWaterMark are
// no-ops — spec §4.6: "enable/disable is driven by the
// topology.backpressure.enable option."
func New(enabled bool, notifier Notifier, executorTag string) *Coordinator {
	return &Coordinator{enabled: enabled, flag: abool.New(), notifier: notifier, executorTag: executorTag}
}

// HighWaterMark implements queue.WatermarkObserver. Edge-triggered: only
// flips and notifies if the flag was previously false.
func (c *Coordinator) HighWaterMark() {
	if !c.enabled {
		return
	}
	if c.flag.SetToIf(false, true) {
		metrics.BackpressureActive.WithLabelValues(c.executorTag).Set(1)
		c.notifier.NotifyBackpressure(true)
	}
}

// LowWaterMark implements queue.WatermarkObserver. Edge-triggered: only
// flips and notifies if the flag was previously true.
func (c *Coordinator) LowWaterMark() {
	if !c.enabled {
		return
	}
	if c.flag.SetToIf(true, false) {
		metrics.BackpressureActive.WithLabelValues(c.executorTag).Set(0)
		c.notifier.NotifyBackpressure(false)
	}
}

// Active reports the current backpressure state.
func (c *Coordinator) Active() bool {
	return c.flag.IsSet()
}
