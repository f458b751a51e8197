// Package executor implements ExecutorCore and its Bolt/Spout
// specializations (spec §4.7-4.9): the event-loop driver that consumes
// receive_queue, dispatches tuples to per-task user logic, and exposes the
// shared send_unanchored / send_to_event_logger / metrics_tick helpers.
// The event loop runs under github.com/sourcegraph/conc's panic-safe
// WaitGroup, since a user logic panic here must be caught and routed
// through the error reporter rather than crashing the whole worker
// process.
package executor

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc"

	"firestige.xyz/streamcore/internal/backpressure"
	"firestige.xyz/streamcore/internal/cluster"
	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/metrics"
	"firestige.xyz/streamcore/internal/queue"
	"firestige.xyz/streamcore/internal/scheduler"
	"firestige.xyz/streamcore/internal/stream"
	"firestige.xyz/streamcore/internal/task"
	"firestige.xyz/streamcore/internal/transfer"
	"firestige.xyz/streamcore/internal/worker"
)

// observerRegistrar is implemented by queue.Queue[T] for any T; narrowed out
// of ReceiveQueue so this package doesn't need to know T to register the
// backpressure coordinator as a watermark observer.
type observerRegistrar interface {
	RegisterObserver(queue.WatermarkObserver)
}

// TupleAction is supplied by the Bolt/Spout specialization (spec §4.7).
type TupleAction func(taskID stream.TaskID, tuple stream.Tuple) error

// ReceiveQueue is the subset of queue.Queue the core needs, decoupling this
// package from the queue package's generic instantiation for batches of
// AddressedTuple.
type ReceiveQueue interface {
	ConsumeOne(ctx context.Context) (batch []stream.AddressedTuple, seq uint64, endOfBatch bool, err error)
}

// DebugOptions governs send_to_event_logger sampling (spec §4.7).
type DebugOptions struct {
	Enabled     bool
	SamplingPct float64
	EventLoggerTaskID stream.TaskID
	HasEventLogger    bool
}

// Core is ExecutorCore: shared lifecycle and event handling over
// receive_queue, specialized by Bolt/Spout via TupleAction.
type Core struct {
	ComponentID stream.ComponentID
	TaskIDs     []stream.TaskID // ascending, immutable after construction
	Tasks       map[stream.TaskID]*task.Task

	receiveQueue ReceiveQueue
	transfer     *transfer.ExecutorTransfer
	scheduler    *scheduler.Scheduler
	backpressure *backpressure.Coordinator
	worker       *worker.Handle
	clusterState cluster.IStormClusterState
	metrics      *MetricsRegistry

	debug bool
	rng   *rand.Rand
	log   *slog.Logger

	tupleAction TupleAction
	wg          conc.WaitGroup
}

// Config bundles Core's collaborators, kept as a struct rather than a long
// constructor parameter list.
type Config struct {
	ComponentID   stream.ComponentID
	TaskIDs       []stream.TaskID
	Tasks         map[stream.TaskID]*task.Task
	ReceiveQueue  ReceiveQueue
	Transfer      *transfer.ExecutorTransfer
	Scheduler     *scheduler.Scheduler
	Backpressure  *backpressure.Coordinator
	Worker        *worker.Handle
	ClusterState  cluster.IStormClusterState
	Metrics       *MetricsRegistry
	Debug         bool
	RNGSeed       int64
	Logger        *slog.Logger
}

func newCore(cfg Config, tupleAction TupleAction) *Core {
	ids := append([]stream.TaskID(nil), cfg.TaskIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clusterState := cfg.ClusterState
	if clusterState == nil {
		clusterState = cluster.NoopClusterState{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetricsRegistry()
	}

	if cfg.Backpressure != nil {
		if reg, ok := cfg.ReceiveQueue.(observerRegistrar); ok {
			reg.RegisterObserver(cfg.Backpressure)
		}
	}

	return &Core{
		ComponentID:  cfg.ComponentID,
		TaskIDs:      ids,
		Tasks:        cfg.Tasks,
		receiveQueue: cfg.ReceiveQueue,
		transfer:     cfg.Transfer,
		scheduler:    cfg.Scheduler,
		backpressure: cfg.Backpressure,
		worker:       cfg.Worker,
		clusterState: clusterState,
		metrics:      metrics,
		debug:        cfg.Debug,
		rng:          rand.New(rand.NewSource(cfg.RNGSeed)),
		log:          logger,
		tupleAction:  tupleAction,
	}
}

// Run starts the event loop in its own goroutine and returns at once; Wait
// blocks until the loop ends. The loop consumes receive_queue and dispatches
// each AddressedTuple in the batch per spec §4.7, until ConsumeOne fails
// (ctx cancelled or queue closed) or a fatal error is reported. Errors and
// panics from tupleAction are routed through the cluster-state error
// reporter (spec §7 propagation policy); a fatal one invokes suicide_fn and
// stops the loop.
func (c *Core) Run(ctx context.Context) {
	c.wg.Go(func() {
		metrics.ExecutorStatusGauge.WithLabelValues(string(c.ComponentID)).Set(metrics.ExecutorStatusRunning)
		defer metrics.ExecutorStatusGauge.WithLabelValues(string(c.ComponentID)).Set(metrics.ExecutorStatusStopped)
		c.eventLoop(ctx)
	})
}

// Wait blocks until the event loop (and any panics it recovered) complete.
func (c *Core) Wait() {
	c.wg.Wait()
}

func (c *Core) eventLoop(ctx context.Context) {
	for {
		batch, _, _, err := c.receiveQueue.ConsumeOne(ctx)
		if err != nil {
			// Queue interruption during shutdown is normal termination
			// (spec §7), not reported as an error.
			return
		}

		for _, at := range batch {
			if c.debug {
				c.log.Debug("incoming tuple", "dest", at.Dest, "source_task_id", at.Tuple.SourceTaskID, "stream", at.Tuple.SourceStreamID)
			}

			if at.Dest == stream.BROADCAST {
				for _, taskID := range c.TaskIDs {
					if c.dispatch(ctx, taskID, at.Tuple) {
						return
					}
				}
			} else if c.dispatch(ctx, at.Dest, at.Tuple) {
				return
			}
		}
	}
}

// dispatch runs tupleAction for one task and reports any error or panic it
// raises. It returns true when the error was fatal.
func (c *Core) dispatch(ctx context.Context, taskID stream.TaskID, tuple stream.Tuple) bool {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = execerr.New(execerr.UserLogicError, "panic in tuple_action", nil)
			}
		}()
		return c.tupleAction(taskID, tuple)
	}()
	metrics.ExecutorDispatchLatencySeconds.WithLabelValues(string(c.ComponentID)).Observe(time.Since(start).Seconds())
	if err == nil {
		return false
	}

	var ee error
	if execerr.IsFatal(err) {
		ee = err
	} else {
		ee = execerr.New(execerr.UserLogicError, "tuple_action failed", err)
	}
	key := cluster.ErrorKey{ComponentID: c.ComponentID, TaskID: taskID}

	if execerr.IsFatal(ee) {
		_ = c.clusterState.ReportErrorAndDie(ctx, key, ee, func() {
			if c.worker != nil && c.worker.SuicideFn != nil {
				c.worker.SuicideFn()
			}
		})
		return true
	}
	_ = c.clusterState.ReportError(ctx, key, ee)
	return false
}

// SendUnanchored builds the outgoing tuple from t and sends it to every
// target returned by t's outgoing resolver, with no anchoring to in-flight
// message ids (spec §4.7).
func (c *Core) SendUnanchored(t *task.Task, streamID stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	return t.Emit(streamID, values)
}

// SendToEventLogger forwards (component_id, message_id, wall_time_ms,
// values) on the event-logger stream if debug options enable it and the
// sampling roll succeeds (spec §4.7). Sampling misses and a disabled logger
// are swallowed silently, matching spec §7 propagation policy.
func (c *Core) SendToEventLogger(t *task.Task, values stream.Values, messageID string, opts DebugOptions) {
	if !opts.Enabled || !opts.HasEventLogger {
		return
	}
	if c.rng.Float64()*100 >= opts.SamplingPct {
		return
	}

	entry := stream.EventLogEntry{
		ComponentID: t.ComponentID,
		MessageID:   messageID,
		WallTimeMs:  stream.WallTimeMs(),
		Values:      values,
	}
	tuple := stream.Tuple{
		SourceTaskID:   t.TaskID,
		SourceStreamID: stream.StreamEventLogger,
		Fields:         stream.Values{entry},
	}
	_ = c.transfer.Transfer(opts.EventLoggerTaskID, tuple)
}

// MetricsTick reads the collection interval from tuple field 0, gathers
// every DataPoint registered at that interval for t, and — if non-empty —
// emits (TaskInfo, data_points) on the metrics stream (spec §4.7). Any
// collection error is wrapped, matching §7: "metrics_tick wraps any
// exception."
func (c *Core) MetricsTick(t *task.Task, tuple stream.Tuple) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = execerr.New(execerr.UserLogicError, "panic collecting metrics", nil)
		}
	}()

	if len(tuple.Fields) == 0 {
		return execerr.New(execerr.ConfigError, "metrics tick tuple missing interval field", nil)
	}
	interval, ok := tuple.Fields[0].(int)
	if !ok {
		return execerr.New(execerr.ConfigError, "metrics tick interval field is not an int", nil)
	}

	points := c.metrics.Collect(t.TaskID, interval)
	if len(points) == 0 {
		return nil
	}

	info := stream.TaskInfo{TaskID: t.TaskID, ComponentID: t.ComponentID}
	_, err = t.Emit(stream.StreamMetrics, stream.Values{info, points})
	return err
}
