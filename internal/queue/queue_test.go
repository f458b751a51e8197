package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/streamcore/internal/execerr"
)

type recordingObserver struct {
	mu         sync.Mutex
	highCount  int
	lowCount   int
}

func (o *recordingObserver) HighWaterMark() {
	o.mu.Lock()
	o.highCount++
	o.mu.Unlock()
}

func (o *recordingObserver) LowWaterMark() {
	o.mu.Lock()
	o.lowCount++
	o.mu.Unlock()
}

func (o *recordingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.highCount, o.lowCount
}

// TestQueue_FIFOOrder covers spec invariant 1: events are delivered in
// publication order to a single consumer.
func TestQueue_FIFOOrder(t *testing.T) {
	q := New[int](8, 0.8, 0.2, SingleProducer)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Publish(ctx, i))
	}

	for i := 0; i < 5; i++ {
		v, _, _, err := q.ConsumeOne(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

// TestQueue_WatermarkCrossing_EdgeTriggered covers spec invariant 4 and
// scenario 3: capacity 1024, high=0.8, low=0.2. Publishing to depth 820
// fires HighWaterMark exactly once even though depth stays above high for
// several more publishes; consuming back down to depth 200 fires
// LowWaterMark exactly once.
func TestQueue_WatermarkCrossing_EdgeTriggered(t *testing.T) {
	q := New[int](1024, 0.8, 0.2, SingleProducer)
	obs := &recordingObserver{}
	q.RegisterObserver(obs)
	ctx := context.Background()

	for i := 0; i < 820; i++ {
		require.NoError(t, q.Publish(ctx, i))
	}
	high, low := obs.counts()
	assert.Equal(t, 1, high)
	assert.Equal(t, 0, low)

	for i := 0; i < 30; i++ {
		require.NoError(t, q.Publish(ctx, i))
	}
	high, _ = obs.counts()
	assert.Equal(t, 1, high, "staying above the high watermark must not refire")

	for i := 0; i < 650; i++ {
		_, _, _, err := q.ConsumeOne(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 200, q.Depth())

	high, low = obs.counts()
	assert.Equal(t, 1, high)
	assert.Equal(t, 1, low)
}

// TestQueue_NoObserverIsSafe is a degenerate case of invariant
// 3's spirit applied to the queue layer: a queue with no observers never
// panics and depth accounting still behaves.
func TestQueue_NoObserverIsSafe(t *testing.T) {
	q := New[int](4, 0.8, 0.2, SingleProducer)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, 1))
	v, _, eob, err := q.ConsumeOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, eob)
}

// TestQueue_CloseUnblocksWaitingConsumer covers the §4.1 failure clause: a
// blocked consume is interrupted by shutdown rather than hanging forever.
func TestQueue_CloseUnblocksWaitingConsumer(t *testing.T) {
	q := New[int](4, 0.8, 0.2, SingleProducer)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, _, _, err := q.ConsumeOne(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, execerr.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("ConsumeOne did not unblock after Close")
	}
}

// TestQueue_TryPublishFullReturnsErrQueueFull covers the non-blocking publish
// path used where a producer must not stall.
func TestQueue_TryPublishFullReturnsErrQueueFull(t *testing.T) {
	q := New[int](2, 0.8, 0.2, MultiProducer)
	require.NoError(t, q.TryPublish(1))
	require.NoError(t, q.TryPublish(2))
	assert.ErrorIs(t, q.TryPublish(3), execerr.ErrQueueFull)
}

// TestQueue_MultiProducerConcurrentPublish exercises the receive_queue's MPSC
// discipline: many goroutines publish concurrently, a single consumer drains
// everything, total count matches.
func TestQueue_MultiProducerConcurrentPublish(t *testing.T) {
	q := New[int](16, 0.8, 0.2, MultiProducer)
	ctx := context.Background()

	const producers = 8
	const perProducer = 50
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Publish(ctx, i)
			}
		}()
	}

	received := 0
	doneConsuming := make(chan struct{})
	go func() {
		for received < producers*perProducer {
			_, _, _, err := q.ConsumeOne(ctx)
			if err != nil {
				break
			}
			received++
		}
		close(doneConsuming)
	}()

	wg.Wait()
	select {
	case <-doneConsuming:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain all published events")
	}
	assert.Equal(t, producers*perProducer, received)
}

func TestBatchPublisher_FlushesOnSizeThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := New[[]int](8, 0.8, 0.2, SingleProducer)
	bp := NewBatchPublisher[int](ctx, sink, 3, time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, bp.Submit(ctx, i))
	}

	batch, _, _, err := sink.ConsumeOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, batch)
}

func TestBatchPublisher_FlushesOnTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := New[[]int](8, 0.8, 0.2, SingleProducer)
	bp := NewBatchPublisher[int](ctx, sink, 100, 20*time.Millisecond)

	require.NoError(t, bp.Submit(ctx, 42))

	batch, _, _, err := sink.ConsumeOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, batch)
}
