package executor

import (
	"sync"

	"firestige.xyz/streamcore/internal/stream"
)

// DataPointProvider samples one named metric for a task. A nil return means
// "no value this tick" and is excluded from the collected batch (spec §4.7:
// "excluding nulls").
type DataPointProvider func() *stream.DataPoint

// MetricsRegistry holds the DataPointProviders registered per (task,
// interval), consulted by ExecutorCore.MetricsTick: providers are
// registered once and read on each collection tick.
type MetricsRegistry struct {
	mu        sync.RWMutex
	providers map[stream.TaskID]map[int][]DataPointProvider
}

// NewMetricsRegistry builds an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{providers: make(map[stream.TaskID]map[int][]DataPointProvider)}
}

// Register adds a provider for task at intervalSecs.
func (r *MetricsRegistry) Register(task stream.TaskID, intervalSecs int, provider DataPointProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers[task] == nil {
		r.providers[task] = make(map[int][]DataPointProvider)
	}
	r.providers[task][intervalSecs] = append(r.providers[task][intervalSecs], provider)
}

// Collect samples every provider registered for (task, intervalSecs),
// dropping nil results.
func (r *MetricsRegistry) Collect(task stream.TaskID, intervalSecs int) []stream.DataPoint {
	r.mu.RLock()
	providers := append([]DataPointProvider(nil), r.providers[task][intervalSecs]...)
	r.mu.RUnlock()

	points := make([]stream.DataPoint, 0, len(providers))
	for _, p := range providers {
		if dp := p(); dp != nil {
			points = append(points, *dp)
		}
	}
	return points
}

// Intervals reports the distinct intervals registered across all tasks, in
// no particular order.
func (r *MetricsRegistry) Intervals() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[int]bool)
	for _, byInterval := range r.providers {
		for interval := range byInterval {
			seen[interval] = true
		}
	}
	out := make([]int, 0, len(seen))
	for interval := range seen {
		out = append(out, interval)
	}
	return out
}
