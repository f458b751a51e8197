package executor

import (
	"context"
	"time"

	"firestige.xyz/streamcore/internal/cluster"
	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/stream"
	"firestige.xyz/streamcore/internal/task"
)

// SpoutLogic is the user-supplied callback set a spout component
// implements. Pending-message tracking and timeout scanning are spout-owned
// and intentionally not expanded here (spec §4.9: "not expanded here").
type SpoutLogic interface {
	NextTuple(t *task.Task) error
	Ack(t *task.Task, messageID string) error
	Fail(t *task.Task, messageID string) error
}

// SpoutExecutor specializes Core for spout components (spec §4.9). It has
// no inbound data tuples from other components: its tupleAction only
// services ticks (and, through a full ack-tracking collaborator out of
// scope here, acks/fails arriving as addressed system tuples). Its other
// job is driving NextTuple under a wait strategy, gated by
// max_spout_pending, storm_active, and throttle_on.
type SpoutExecutor struct {
	*Core
	logic SpoutLogic

	maxSpoutPending int // 0 = unbounded
	pendingCount    map[stream.TaskID]int
	waitSleep       time.Duration
}

// NewSpoutExecutor builds a SpoutExecutor.
func NewSpoutExecutor(cfg Config, logic SpoutLogic, maxSpoutPending int, waitSleep time.Duration) *SpoutExecutor {
	s := &SpoutExecutor{
		logic:           logic,
		maxSpoutPending: maxSpoutPending,
		pendingCount:    make(map[stream.TaskID]int),
		waitSleep:       waitSleep,
	}
	s.Core = newCore(cfg, s.tupleAction)

	// max_spout_pending only throttles actual emission, so pendingCount is
	// incremented through Task's emit hook rather than on every NextTuple
	// call (a NextTuple that emits nothing must not count against the cap).
	for taskID, t := range s.Tasks {
		id := taskID
		t.SetEmitHook(func(string) { s.pendingCount[id]++ })
	}
	return s
}

func (s *SpoutExecutor) tupleAction(taskID stream.TaskID, tuple stream.Tuple) error {
	t, ok := s.Tasks[taskID]
	if !ok {
		return execerr.ErrTaskNotFound
	}

	switch tuple.SourceStreamID {
	case stream.StreamTick:
		return nil // system tick only gates NextTuple's wait strategy, no user callback here
	default:
		return nil
	}
}

// RunNextTupleLoop drives NextTuple for taskID under the wait strategy spec
// §4.9 describes: only calls through when storm_active is set, throttle_on
// is clear, and max_spout_pending allows more in-flight messages. Runs
// until ctx is cancelled.
func (s *SpoutExecutor) RunNextTupleLoop(ctx context.Context, taskID stream.TaskID) {
	s.wg.Go(func() {
		t, ok := s.Tasks[taskID]
		if !ok {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !s.canEmit(taskID) {
				s.sleep(ctx)
				continue
			}

			if err := s.logic.NextTuple(t); err != nil {
				key := cluster.ErrorKey{ComponentID: s.ComponentID, TaskID: taskID}
				_ = s.clusterState.ReportError(ctx, key, execerr.New(execerr.UserLogicError, "NextTuple failed", err))
			}
			s.sleep(ctx)
		}
	})
}

func (s *SpoutExecutor) canEmit(taskID stream.TaskID) bool {
	if s.worker != nil {
		if s.worker.StormActive != nil && !s.worker.StormActive.Load() {
			return false
		}
		if s.worker.ThrottleOn != nil && s.worker.ThrottleOn.Load() {
			return false
		}
	}
	if s.maxSpoutPending <= 0 {
		return true
	}
	return s.pendingCount[taskID] < s.maxSpoutPending
}

func (s *SpoutExecutor) sleep(ctx context.Context) {
	if s.waitSleep <= 0 {
		return
	}
	timer := time.NewTimer(s.waitSleep)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Ack delegates to user logic and decrements the pending count for taskID.
func (s *SpoutExecutor) Ack(taskID stream.TaskID, messageID string) error {
	t, ok := s.Tasks[taskID]
	if !ok {
		return execerr.ErrTaskNotFound
	}
	if s.pendingCount[taskID] > 0 {
		s.pendingCount[taskID]--
	}
	return s.logic.Ack(t, messageID)
}

// Fail delegates to user logic and decrements the pending count for taskID.
func (s *SpoutExecutor) Fail(taskID stream.TaskID, messageID string) error {
	t, ok := s.Tasks[taskID]
	if !ok {
		return execerr.ErrTaskNotFound
	}
	if s.pendingCount[taskID] > 0 {
		s.pendingCount[taskID]--
	}
	return s.logic.Fail(t, messageID)
}
