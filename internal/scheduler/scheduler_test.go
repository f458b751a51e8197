package scheduler

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/streamcore/internal/stream"
)

type countingPublisher struct {
	mu     sync.Mutex
	tuples []stream.Tuple
}

func (p *countingPublisher) PublishBroadcast(tuple stream.Tuple) error {
	p.mu.Lock()
	p.tuples = append(p.tuples, tuple)
	p.mu.Unlock()
	return nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tuples)
}

// TestSystemTick_CountWithinBounds covers spec invariant 6: for
// tick_tuple_freq_secs = f, over a window of W seconds the tick count is
// between floor(W/f)-1 and ceil(W/f)+1. We use sub-second intervals scaled
// down for a fast test, preserving the same f/W ratio.
func TestSystemTick_CountWithinBounds(t *testing.T) {
	pub := &countingPublisher{}
	s := New(pub)

	// Can't use sub-second intervals through StartSystemTick (it takes whole
	// seconds), so drive a Job directly at a fine-grained interval instead.
	const intervalMs = 20
	const windowMs = 500
	job := newJob(1, 0, func() {
		_ = pub.PublishBroadcast(stream.Tuple{SourceStreamID: stream.StreamTick})
	})
	job.interval = intervalMs * time.Millisecond
	job.start()
	time.Sleep(windowMs * time.Millisecond)
	job.stop()
	time.Sleep(10 * time.Millisecond)

	f := float64(intervalMs)
	w := float64(windowMs)
	lower := math.Floor(w/f) - 1
	upper := math.Ceil(w/f) + 1

	count := float64(pub.count())
	assert.GreaterOrEqual(t, count, lower)
	assert.LessOrEqual(t, count, upper)

	_ = s
}

// TestMetricsTick_NoRegistrationsProducesNothing covers spec scenario 6:
// with no metrics interval registered, no metrics tick tuples are produced.
func TestMetricsTick_NoRegistrationsProducesNothing(t *testing.T) {
	pub := &countingPublisher{}
	s := New(pub)
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	assert.Equal(t, 0, pub.count())
}

func TestRegisterMetricsInterval_OneJobPerDistinctInterval(t *testing.T) {
	pub := &countingPublisher{}
	s := New(pub)
	s.RegisterMetricsInterval(60)
	s.RegisterMetricsInterval(60)
	assert.Len(t, s.metricsJobs, 1)
	s.Stop()
}

func TestUpdateMetricsInterval_ReplacesJob(t *testing.T) {
	pub := &countingPublisher{}
	s := New(pub)
	s.RegisterMetricsInterval(60)
	s.UpdateMetricsInterval(60, 120)

	s.mu.Lock()
	_, hasOld := s.metricsJobs[60]
	_, hasNew := s.metricsJobs[120]
	s.mu.Unlock()

	assert.False(t, hasOld)
	assert.True(t, hasNew)
	s.Stop()
}
