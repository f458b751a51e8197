// Package stream defines the core wire types shared by every executor
// component: task/component/stream identifiers and the tuple envelope that
// flows through queues, groupers, and the transfer layer.
package stream

import (
	"time"

	uuid "github.com/satori/go.uuid"
)

// TaskID identifies one task instance within a component's executor range.
type TaskID int

// BROADCAST is the reserved destination meaning "every task in this executor".
const BROADCAST TaskID = -1

// SYSTEM_TASK_ID is the synthetic source task id for system-originated tuples
// (ticks, metrics ticks).
const SYSTEM_TASK_ID TaskID = -2

// ComponentID names a node (spout or bolt) in the topology.
type ComponentID string

// StreamID names a logical channel with a fixed field schema.
type StreamID string

// Reserved stream ids, per spec §6.
const (
	StreamTick        StreamID = "__tick"
	StreamMetricsTick StreamID = "__metrics_tick"
	StreamMetrics     StreamID = "__metrics"
	StreamSystem      StreamID = "__system"
	StreamEventLogger StreamID = "__eventlogger"
)

// Values is an ordered field list for a tuple, matching the rest of the
// pack's map[string]any/[]any convention for loosely-typed wire payloads.
type Values []any

// Tuple is a typed record flowing between tasks on a named stream.
type Tuple struct {
	SourceTaskID   TaskID
	SourceStreamID StreamID
	Fields         Values
	MessageID      string
}

// NewMessageID generates a fresh message id using the same UUID library the
// rest of the pack already depends on for call/session identifiers.
func NewMessageID() string {
	return uuid.NewV4().String()
}

// AddressedTuple pairs a Tuple with its routing destination: a specific
// TaskID, or BROADCAST to mean "deliver to every task in this executor".
type AddressedTuple struct {
	Dest  TaskID
	Tuple Tuple
}

// WorkerAddress identifies the worker process hosting a downstream task, as
// resolved by the worker-supplied task_id -> worker_address map.
type WorkerAddress string

// OutboundTuple is a Tuple paired with the worker address that owns its
// destination task — the unit the transfer_queue hands to worker transport.
type OutboundTuple struct {
	Dest    WorkerAddress
	TaskID  TaskID
	Tuple   Tuple
}

// EventLogEntry is the payload forwarded on the event-logger stream when
// debug sampling fires (spec §4.7, send_to_event_logger).
type EventLogEntry struct {
	ComponentID ComponentID
	MessageID   string
	WallTimeMs  int64
	Values      Values
}

// DataPoint is a single named metric sample collected at a tick interval.
type DataPoint struct {
	Name  string
	Value float64
}

// TaskInfo identifies the task a batch of DataPoints was collected for.
type TaskInfo struct {
	TaskID      TaskID
	ComponentID ComponentID
}

// now is overridable in tests; production code always calls time.Now.
var now = time.Now

// WallTimeMs returns the current wall-clock time in milliseconds, the unit
// EventLogEntry and metrics tuples use.
func WallTimeMs() int64 {
	return now().UnixMilli()
}
