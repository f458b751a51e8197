// Package scheduler implements TickScheduler (spec §4.5): the periodic
// system-tick and metrics-tick jobs an executor publishes into its own
// receive_queue as broadcast addressed tuples. Jobs get atomically allocated
// ids; metrics jobs are kept in a map keyed by interval, and Stop (or
// UpdateMetricsInterval, for one interval) stops and deletes them.
// The two fixed job kinds spec §4.5 names each wrap a time.Ticker.
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/tevino/abool"

	"firestige.xyz/streamcore/internal/stream"
)

// Publisher is the subset of receive_queue's API the scheduler needs: it
// only ever publishes broadcast addressed tuples.
type Publisher interface {
	PublishBroadcast(tuple stream.Tuple) error
}

// Scheduler owns the running tick jobs for one executor: at most one system
// tick job, and one metrics tick job per distinct registered interval
// (spec §4.5: "one job per distinct interval").
type Scheduler struct {
	publisher Publisher

	mu          sync.Mutex
	systemTick  *Job
	metricsJobs map[int]*Job // interval (seconds) -> job

	nextJobID int64
}

// New builds a Scheduler publishing tick tuples through publisher.
func New(publisher Publisher) *Scheduler {
	return &Scheduler{
		publisher:   publisher,
		metricsJobs: make(map[int]*Job),
	}
}

// StartSystemTick starts the system-tick job on stream __tick, suppressed by
// the caller per spec §4.5 rules: "suppressed when the
// component id is a system id, or when it is a spout and message timeouts
// are disabled." Those rules are evaluated by the caller before invoking
// this, so StartSystemTick unconditionally starts the job when called.
func (s *Scheduler) StartSystemTick(intervalSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.systemTick != nil {
		return
	}
	id := int(atomic.AddInt64(&s.nextJobID, 1))
	s.systemTick = newJob(id, intervalSecs, func() {
		tuple := stream.Tuple{
			SourceTaskID:   stream.SYSTEM_TASK_ID,
			SourceStreamID: stream.StreamTick,
			Fields:         stream.Values{intervalSecs},
		}
		_ = s.publisher.PublishBroadcast(tuple)
	})
	s.systemTick.start()
}

// RegisterMetricsInterval starts a metrics-tick job for intervalSecs if one
// isn't already running for that interval (spec §4.5 point 2).
func (s *Scheduler) RegisterMetricsInterval(intervalSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.metricsJobs[intervalSecs]; exists {
		return
	}
	id := int(atomic.AddInt64(&s.nextJobID, 1))
	job := newJob(id, intervalSecs, func() {
		tuple := stream.Tuple{
			SourceTaskID:   stream.SYSTEM_TASK_ID,
			SourceStreamID: stream.StreamMetricsTick,
			Fields:         stream.Values{intervalSecs},
		}
		_ = s.publisher.PublishBroadcast(tuple)
	})
	s.metricsJobs[intervalSecs] = job
	job.start()
}

// UpdateMetricsInterval replaces the running metrics job for oldInterval
// with one at newInterval — the hot-reload path spec §12/SUPPLEMENTED
// FEATURES names: a topology may adjust its metrics consumer's registered
// interval without restarting the executor.
func (s *Scheduler) UpdateMetricsInterval(oldInterval, newInterval int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if oldInterval == newInterval {
		return
	}
	if job, exists := s.metricsJobs[oldInterval]; exists {
		job.stop()
		delete(s.metricsJobs, oldInterval)
	}
	if _, exists := s.metricsJobs[newInterval]; exists {
		return
	}
	id := int(atomic.AddInt64(&s.nextJobID, 1))
	job := newJob(id, newInterval, func() {
		tuple := stream.Tuple{
			SourceTaskID:   stream.SYSTEM_TASK_ID,
			SourceStreamID: stream.StreamMetricsTick,
			Fields:         stream.Values{newInterval},
		}
		_ = s.publisher.PublishBroadcast(tuple)
	})
	s.metricsJobs[newInterval] = job
	job.start()
}

// Stop cancels every running job (system tick and all metrics ticks) —
// spec §5: "Timer jobs are cancelled before loops stop."
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.systemTick != nil {
		s.systemTick.stop()
		s.systemTick = nil
	}
	for interval, job := range s.metricsJobs {
		job.stop()
		delete(s.metricsJobs, interval)
	}
}

// skipGuard is shared by Job to guarantee at-most-one outstanding tick per
// job, skipping a firing if the previous one hasn't finished (spec §4.5:
// "must guarantee at-most-one outstanding tick per job (skip on overrun)").
type skipGuard struct {
	busy *abool.AtomicBool
}

func newSkipGuard() *skipGuard { return &skipGuard{busy: abool.New()} }

func (g *skipGuard) tryEnter() bool { return g.busy.SetToIf(false, true) }
func (g *skipGuard) leave()         { g.busy.UnSet() }
