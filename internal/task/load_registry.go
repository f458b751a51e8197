package task

import (
	"sync"
	"sync/atomic"

	"firestige.xyz/streamcore/internal/metrics"
	"firestige.xyz/streamcore/internal/stream"
)

// LoadRegistry tracks the most recently observed queue depth ratio (load,
// in [0,1]) per downstream task id, feeding load-aware groupers (spec §4.3:
// "load-aware form biases away from loaded tasks"): a sync.Map plus an
// atomic count, storing one float64 sample per task.
type LoadRegistry struct {
	data  sync.Map // map[stream.TaskID]float64
	count atomic.Int64

	metricsStream string
}

// NewLoadRegistry creates an empty registry.
func NewLoadRegistry() *LoadRegistry {
	return &LoadRegistry{}
}

// WithMetricsLabel attaches the stream id this registry reports its size
// under (streamcore_load_registry_size). Returns r for chaining onto
// NewLoadRegistry.
func (r *LoadRegistry) WithMetricsLabel(streamID stream.StreamID) *LoadRegistry {
	r.metricsStream = string(streamID)
	return r
}

func (r *LoadRegistry) reportSize() {
	if r.metricsStream == "" {
		return
	}
	metrics.LoadRegistrySize.WithLabelValues(r.metricsStream).Set(float64(r.count.Load()))
}

// Report records the latest load sample for task.
func (r *LoadRegistry) Report(task stream.TaskID, load float64) {
	_, loaded := r.data.Swap(task, load)
	if !loaded {
		r.count.Add(1)
		r.reportSize()
	}
}

// Get returns the last reported load for task, or (0, false) if none.
func (r *LoadRegistry) Get(task stream.TaskID) (float64, bool) {
	v, ok := r.data.Load(task)
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

// Forget removes a task's load sample, e.g. on task reassignment.
func (r *LoadRegistry) Forget(task stream.TaskID) {
	_, loaded := r.data.LoadAndDelete(task)
	if loaded {
		r.count.Add(-1)
		r.reportSize()
	}
}

// Count returns the number of tasks with a recorded load sample.
func (r *LoadRegistry) Count() int {
	return int(r.count.Load())
}

// Range iterates every (task, load) pair. f returns false to stop early.
func (r *LoadRegistry) Range(f func(task stream.TaskID, load float64) bool) {
	r.data.Range(func(k, v any) bool {
		return f(k.(stream.TaskID), v.(float64))
	})
}
