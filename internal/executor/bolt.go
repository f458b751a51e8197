package executor

import (
	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/metrics"
	"firestige.xyz/streamcore/internal/stream"
	"firestige.xyz/streamcore/internal/task"
)

// BoltLogic is the user-supplied callback set a bolt component implements.
// The core does not auto-ack (spec §4.8): Execute is expected to call
// Ack/Fail itself through whatever ack-tracking collaborator the worker
// wires in (out of scope here per §1).
type BoltLogic interface {
	Execute(t *task.Task, tuple stream.Tuple) error
}

// BoltExecutor specializes Core for bolt components (spec §4.8).
type BoltExecutor struct {
	*Core
	logic BoltLogic

	tickStats map[stream.TaskID]uint64
}

// NewBoltExecutor builds a BoltExecutor, wiring Core's tupleAction to the
// three-way stream dispatch spec §4.8 describes.
func NewBoltExecutor(cfg Config, logic BoltLogic) *BoltExecutor {
	b := &BoltExecutor{logic: logic, tickStats: make(map[stream.TaskID]uint64)}
	b.Core = newCore(cfg, b.tupleAction)
	return b
}

func (b *BoltExecutor) tupleAction(taskID stream.TaskID, tuple stream.Tuple) error {
	t, ok := b.Tasks[taskID]
	if !ok {
		return execerr.ErrTaskNotFound
	}

	switch tuple.SourceStreamID {
	case stream.StreamMetricsTick:
		return b.MetricsTick(t, tuple)
	case stream.StreamTick:
		b.tickStats[taskID]++
		metrics.TickCountTotal.WithLabelValues(string(b.ComponentID), string(tuple.SourceStreamID)).Inc()
		return b.logic.Execute(t, tuple)
	default:
		return b.logic.Execute(t, tuple)
	}
}

// TickCount reports how many system ticks taskID has observed, for tests
// and operational introspection.
func (b *BoltExecutor) TickCount(taskID stream.TaskID) uint64 {
	return b.tickStats[taskID]
}
