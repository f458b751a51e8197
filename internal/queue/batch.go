package queue

import (
	"context"
	"time"
)

// BatchPublisher accumulates individual items into batches of up to size
// items, flushing early whenever timeout elapses since the first item in the
// current batch arrived, an accumulate-or-timeout ticker loop targeted at a
// Queue sink.
//
// Spec §4.1: "publishers may accumulate up to batch_size events or
// batch_timeout_ms before becoming visible to the consumer". Each flush is
// one Publish call on the underlying queue, so depth/watermark accounting
// operates in units of batches, not raw items.
type BatchPublisher[T any] struct {
	sink    *Queue[[]T]
	size    int
	timeout time.Duration

	in chan T
}

// NewBatchPublisher starts the batching goroutine immediately; it runs until
// ctx is cancelled. Closing the sink queue does not stop it: batches flushed
// after that are dropped.
func NewBatchPublisher[T any](ctx context.Context, sink *Queue[[]T], size int, timeout time.Duration) *BatchPublisher[T] {
	if size <= 0 {
		size = 1
	}
	bp := &BatchPublisher[T]{
		sink:    sink,
		size:    size,
		timeout: timeout,
		in:      make(chan T, size),
	}
	go bp.loop(ctx)
	return bp
}

// Submit enqueues one item for batching. Blocks if the internal staging
// channel is full, which only happens if the sink's drain goroutine has
// stalled (e.g. consumer is slow and the sink queue itself is full).
func (bp *BatchPublisher[T]) Submit(ctx context.Context, item T) error {
	select {
	case bp.in <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (bp *BatchPublisher[T]) loop(ctx context.Context) {
	var batch []T
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) == 0 {
			return
		}
		out := batch
		batch = nil
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		_ = bp.sink.Publish(ctx, out)
	}

	for {
		select {
		case item, ok := <-bp.in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, item)
			if len(batch) == 1 && bp.timeout > 0 {
				timer = time.NewTimer(bp.timeout)
				timerC = timer.C
			}
			if len(batch) >= bp.size {
				flush()
			}
		case <-timerC:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
