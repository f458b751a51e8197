// Package task implements Task (spec §4.4): the per-task binding of one
// task id to user logic, with outgoing-task resolution through the
// component's GrouperRegistry.
package task

import (
	"go.uber.org/atomic"

	"firestige.xyz/streamcore/internal/grouping"
	"firestige.xyz/streamcore/internal/metrics"
	"firestige.xyz/streamcore/internal/stream"
)

// EmitSink is the subset of ExecutorTransfer a Task needs to deliver emitted
// tuples, decoupling this package from the transfer package's concrete type.
type EmitSink interface {
	Transfer(dest stream.TaskID, tuple stream.Tuple) error
}

// Stats accumulates per-task counters, written only by the event-handler
// thread per spec §5 ("stats is written only by the event-handler thread;
// readers observe via memory-safe snapshot").
type Stats struct {
	Emitted atomic.Uint64
	Acked   atomic.Uint64
	Failed  atomic.Uint64
}

// Snapshot is a point-in-time read of Stats safe to hand to any reader.
type Snapshot struct {
	Emitted uint64
	Acked   uint64
	Failed  uint64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Emitted: s.Emitted.Load(),
		Acked:   s.Acked.Load(),
		Failed:  s.Failed.Load(),
	}
}

// Task binds one task id to user logic plus outgoing resolution through the
// owning component's compiled GrouperRegistry.
type Task struct {
	TaskID      stream.TaskID
	ComponentID stream.ComponentID

	registry *grouping.Registry
	sink     EmitSink
	stats    *Stats
	onEmit   func(messageID string)
}

// New constructs a Task. Per spec §4.4, construction emits a "startup"
// notice on the system stream via send_unanchored before any user call, so
// callers must invoke the returned Task's EmitStartupNotice immediately
// after New (kept as an explicit step rather than folded into New so tests
// can construct a Task without a live sink).
func New(taskID stream.TaskID, componentID stream.ComponentID, registry *grouping.Registry, sink EmitSink) *Task {
	return &Task{
		TaskID:      taskID,
		ComponentID: componentID,
		registry:    registry,
		sink:        sink,
		stats:       &Stats{},
	}
}

// Stats returns the task's stats accumulator.
func (t *Task) Stats() *Stats { return t.stats }

// SetEmitHook registers a callback invoked once per successful Emit with the
// tuple's message id — used by SpoutExecutor to track max_spout_pending
// in-flight messages (spec §4.9).
func (t *Task) SetEmitHook(fn func(messageID string)) {
	t.onEmit = fn
}

// MakeTuple stamps a Tuple with this task's identity as source, per spec
// §4.4 make_tuple. If messageID is empty, one is generated (spec §3: "every
// Tuple gets a MessageID stamped by Task.makeTuple when the caller does not
// supply one").
func (t *Task) MakeTuple(streamID stream.StreamID, values stream.Values, messageID string) stream.Tuple {
	if messageID == "" {
		messageID = stream.NewMessageID()
	}
	return stream.Tuple{
		SourceTaskID:   t.TaskID,
		SourceStreamID: streamID,
		Fields:         values,
		MessageID:      messageID,
	}
}

// OutgoingTasks consults the grouper for each subscribing downstream
// component on streamID and flattens results, per spec §4.4
// outgoing_tasks. A stream with no declared subscribers yields (nil, nil).
func (t *Task) OutgoingTasks(streamID stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	subs, declared := t.registry.Subscribers(streamID)
	if !declared || subs == nil {
		return nil, nil
	}

	var out []stream.TaskID
	for _, componentID := range subs {
		ids, err := t.registry.Select(streamID, componentID, values)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

// Emit composes MakeTuple, OutgoingTasks and EmitSink.Transfer, per spec
// §4.4 emit. Returns the destination task ids the tuple was routed to.
func (t *Task) Emit(streamID stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	dests, err := t.OutgoingTasks(streamID, values)
	if err != nil {
		return nil, err
	}
	if len(dests) == 0 {
		return nil, nil
	}

	tuple := t.MakeTuple(streamID, values, "")
	for _, dest := range dests {
		if err := t.sink.Transfer(dest, tuple); err != nil {
			return nil, err
		}
	}
	t.stats.Emitted.Add(uint64(len(dests)))
	metrics.TuplesEmittedTotal.WithLabelValues(string(t.ComponentID), string(streamID)).Add(float64(len(dests)))
	if t.onEmit != nil {
		t.onEmit(tuple.MessageID)
	}
	return dests, nil
}

// EmitStartupNotice sends the "startup" notice on the system stream via
// send_unanchored (spec §4.4, scenario 5): fields ["startup"], source
// task_id = this task, prior to any user call, routed through the same
// grouper-backed emit path as any other stream — the ACK tracker (out of
// scope per §1) is expected to be a declared __system subscriber so this
// always produces the one tuple scenario 5 requires.
func (t *Task) EmitStartupNotice() error {
	_, err := t.Emit(stream.StreamSystem, stream.Values{"startup"})
	return err
}
