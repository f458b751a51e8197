// Package transfer implements ExecutorTransfer (spec §4.2): a staging
// buffer that any thread may enqueue into, drained single-threaded into the
// transfer_queue as batches keyed by destination worker address, with a
// drain-and-flush discipline per destination.
package transfer

import (
	"context"
	"sync"

	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/stream"
)

// Resolver maps a task id to its worker address, supplied by the worker
// (spec §4.2: "a static task_id → worker_address map provided by the
// worker").
type Resolver interface {
	Resolve(task stream.TaskID) (stream.WorkerAddress, bool)
}

// StaticResolver is the common case: an immutable task_id -> address map.
type StaticResolver map[stream.TaskID]stream.WorkerAddress

func (r StaticResolver) Resolve(task stream.TaskID) (stream.WorkerAddress, bool) {
	addr, ok := r[task]
	return addr, ok
}

// OutQueue is the subset of queue.Queue the drain loop needs, keeping this
// package decoupled from the queue package's generic instantiation for
// batches of OutboundTuple.
type OutQueue interface {
	Publish(ctx context.Context, batch []stream.OutboundTuple) error
}

// ExecutorTransfer stages outbound tuples from any number of producer
// goroutines and drains them, in one dedicated goroutine, into transferQueue
// as batches grouped by destination worker — preserving per-destination
// order (spec §4.2, ordering guarantee in §5).
type ExecutorTransfer struct {
	resolver      Resolver
	transferQueue OutQueue

	mu      sync.Mutex
	staged  []stream.OutboundTuple
	notify  chan struct{}

	done chan struct{}
}

// New builds an ExecutorTransfer; it does not start the drain loop. Call Run
// to drain until ctx is cancelled, draining remaining staged tuples before
// returning (spec §4.2: "drains remaining staged tuples before exiting").
func New(resolver Resolver, transferQueue OutQueue) *ExecutorTransfer {
	return &ExecutorTransfer{
		resolver:      resolver,
		transferQueue: transferQueue,
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Transfer enqueues (dest, tuple) onto the staging buffer. Safe to call
// concurrently from any number of goroutines (spec §4.2 multi-producer
// requirement).
func (t *ExecutorTransfer) Transfer(dest stream.TaskID, tuple stream.Tuple) error {
	addr, ok := t.resolver.Resolve(dest)
	if !ok {
		return execerr.ErrUnknownDest
	}

	t.mu.Lock()
	t.staged = append(t.staged, stream.OutboundTuple{Dest: addr, TaskID: dest, Tuple: tuple})
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the staging buffer into transferQueue. Each drain publishes one
// batch per destination worker address holding all of that address's staged
// tuples in staging order, so order is preserved per destination. Blocks until ctx is cancelled, then performs one final
// best-effort drain (spec §4.2 shutdown clause).
func (t *ExecutorTransfer) Run(ctx context.Context) error {
	defer close(t.done)

	for {
		select {
		case <-ctx.Done():
			t.drainOnce(context.Background())
			return nil
		case <-t.notify:
			t.drainOnce(ctx)
		}
	}
}

// Done reports completion of Run, for callers joining the transfer thread
// during shutdown (spec §5 cancellation sequence).
func (t *ExecutorTransfer) Done() <-chan struct{} { return t.done }

func (t *ExecutorTransfer) drainOnce(ctx context.Context) {
	t.mu.Lock()
	staged := t.staged
	t.staged = nil
	t.mu.Unlock()

	if len(staged) == 0 {
		return
	}

	byDest := make(map[stream.WorkerAddress][]stream.OutboundTuple)
	order := make([]stream.WorkerAddress, 0, 4)
	for _, ot := range staged {
		if _, seen := byDest[ot.Dest]; !seen {
			order = append(order, ot.Dest)
		}
		byDest[ot.Dest] = append(byDest[ot.Dest], ot)
	}

	for _, addr := range order {
		_ = t.transferQueue.Publish(ctx, byDest[addr])
	}
}
