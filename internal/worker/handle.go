// Package worker defines WorkerHandle (spec §6 "To the worker"): the set of
// read-only shared atomics, callbacks and channels a worker process hands an
// executor at construction.
package worker

import (
	"go.uber.org/atomic"

	"firestige.xyz/streamcore/internal/stream"
)

// TransferFunc is the worker-supplied hand-off for tuples destined outside
// this executor (spec §6 transfer_fn).
type TransferFunc func(task stream.TaskID, tuple stream.Tuple) error

// SuicideFunc aborts the worker on a fatal error (spec §6 suicide_fn).
type SuicideFunc func()

// Handle is the read-only (from the executor's perspective) view of shared
// worker state plus the callbacks an executor is given at construction.
// storm_active, throttle_on and storm_component_debug are atomic
// single-writer-multi-reader flags per spec §5; the writer is the worker,
// not the executor.
type Handle struct {
	StormActive         *atomic.Bool
	ThrottleOn          *atomic.Bool
	StormComponentDebug *atomic.Bool

	TaskToComponent map[stream.TaskID]stream.ComponentID

	TransferFn TransferFunc
	SuicideFn  SuicideFunc

	// BackpressureTrigger is the channel the BackpressureCoordinator's
	// Notifier implementation writes to; the worker's backpressure thread
	// reads it.
	BackpressureTrigger chan bool
}

// New builds a Handle with StormActive initialized true, ThrottleOn and
// StormComponentDebug initialized false, and a backpressure trigger channel
// buffered 1 (matching the at-most-one-outstanding-notification nature of
// edge-triggered backpressure).
func New(taskToComponent map[stream.TaskID]stream.ComponentID, transferFn TransferFunc, suicideFn SuicideFunc) *Handle {
	return &Handle{
		StormActive:         atomic.NewBool(true),
		ThrottleOn:          atomic.NewBool(false),
		StormComponentDebug: atomic.NewBool(false),
		TaskToComponent:     taskToComponent,
		TransferFn:          transferFn,
		SuicideFn:           suicideFn,
		BackpressureTrigger: make(chan bool, 1),
	}
}

// NotifyBackpressure implements backpressure.Notifier: a non-blocking send
// on BackpressureTrigger, dropping the stale state if the worker's
// backpressure thread hasn't drained the previous notification yet (only
// the latest state matters).
func (h *Handle) NotifyBackpressure(active bool) {
	select {
	case h.BackpressureTrigger <- active:
	default:
		select {
		case <-h.BackpressureTrigger:
		default:
		}
		select {
		case h.BackpressureTrigger <- active:
		default:
		}
	}
}
