package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/streamcore/internal/backpressure"
	"firestige.xyz/streamcore/internal/config"
	"firestige.xyz/streamcore/internal/executor"
	"firestige.xyz/streamcore/internal/grouping"
	"firestige.xyz/streamcore/internal/queue"
	"firestige.xyz/streamcore/internal/scheduler"
	"firestige.xyz/streamcore/internal/stream"
	"firestige.xyz/streamcore/internal/task"
	"firestige.xyz/streamcore/internal/transfer"
	"firestige.xyz/streamcore/internal/worker"
)

// broadcastPublisher adapts a receive_queue to scheduler.Publisher, wrapping
// each tick tuple as a one-element broadcast batch.
type broadcastPublisher struct {
	q *queue.Queue[[]stream.AddressedTuple]
}

func (p broadcastPublisher) PublishBroadcast(tuple stream.Tuple) error {
	return p.q.Publish(context.Background(), []stream.AddressedTuple{{Dest: stream.BROADCAST, Tuple: tuple}})
}

const wordsStream stream.StreamID = "words"

var runDuration time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an in-process demo topology (one spout, one fields-grouped bolt)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context())
	},
}

func init() {
	runCmd.Flags().DurationVar(&runDuration, "duration", 3*time.Second, "how long to run the demo topology before reporting results")
}

// wordSpout emits random words from a fixed vocabulary on the "words"
// stream until the context is cancelled.
type wordSpout struct {
	vocab []string
	rng   *rand.Rand
}

func (s *wordSpout) NextTuple(t *task.Task) error {
	word := s.vocab[s.rng.Intn(len(s.vocab))]
	_, err := t.Emit(wordsStream, stream.Values{word})
	return err
}

func (s *wordSpout) Ack(t *task.Task, messageID string) error  { return nil }
func (s *wordSpout) Fail(t *task.Task, messageID string) error { return nil }

// countBolt tallies word occurrences, partitioned by fields grouping so
// each task only ever sees a subset of the word space.
type countBolt struct {
	mu     sync.Mutex
	counts map[stream.TaskID]map[string]int
}

func newCountBolt() *countBolt {
	return &countBolt{counts: make(map[stream.TaskID]map[string]int)}
}

func (b *countBolt) Execute(t *task.Task, tuple stream.Tuple) error {
	if tuple.SourceStreamID != wordsStream {
		return nil // tick/metrics-tick tuples pass through with no counting
	}
	word, ok := tuple.Fields[0].(string)
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counts[t.TaskID] == nil {
		b.counts[t.TaskID] = make(map[string]int)
	}
	b.counts[t.TaskID][word]++
	return nil
}

func (b *countBolt) report() map[stream.TaskID]map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[stream.TaskID]map[string]int, len(b.counts))
	for task, words := range b.counts {
		cp := make(map[string]int, len(words))
		for w, c := range words {
			cp[w] = c
		}
		out[task] = cp
	}
	return out
}

// noopSink is used for tasks that never emit (the bolt in this demo has no
// declared outgoing streams).
type noopSink struct{}

func (noopSink) Transfer(stream.TaskID, stream.Tuple) error { return nil }

func runDemo(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	topoCfg := config.NewTopologyConfig()
	if topologyFile != "" {
		loaded, err := config.LoadTopologyConfig(topologyFile)
		if err != nil {
			return fmt.Errorf("load topology config: %w", err)
		}
		topoCfg = loaded
	}

	const spoutTaskID = stream.TaskID(0)
	boltTaskIDs := []stream.TaskID{10, 11, 12, 13}

	spoutRegistry := grouping.Build(map[stream.StreamID][]grouping.Subscriber{
		wordsStream: {{
			ComponentID: "counter",
			Kind:        grouping.Fields,
			Tasks:       boltTaskIDs,
			Fields:      []string{"word"},
			FieldIndex:  map[string]int{"word": 0},
		}},
	})
	boltRegistry := grouping.Build(map[stream.StreamID][]grouping.Subscriber{})

	resolver := make(transfer.StaticResolver)
	for _, id := range append([]stream.TaskID{spoutTaskID}, boltTaskIDs...) {
		resolver[id] = "local-worker"
	}

	boltReceiveQueue := queue.New[[]stream.AddressedTuple](
		topoCfg.GetInt(config.KeyExecutorSendBufferSize), 0.8, 0.2, queue.MultiProducer).
		WithMetricsLabels("counter", "receive")
	spoutReceiveQueue := queue.New[[]stream.AddressedTuple](
		topoCfg.GetInt(config.KeyExecutorSendBufferSize), 0.8, 0.2, queue.MultiProducer).
		WithMetricsLabels("word-spout", "receive")
	transferQueue := queue.New[[]stream.OutboundTuple](
		topoCfg.GetInt(config.KeyExecutorSendBufferSize), 0.8, 0.2, queue.SingleProducer).
		WithMetricsLabels("word-spout", "transfer")

	spoutTransfer := transfer.New(resolver, transferQueue)

	logger := slog.Default()

	boltWorker := worker.New(nil, nil, nil)
	boltBackpressure := backpressure.New(topoCfg.GetBool(config.KeyBackpressureEnable), boltWorker, "counter")

	spoutTask := task.New(spoutTaskID, "word-spout", spoutRegistry, spoutTransfer)
	boltTasks := make(map[stream.TaskID]*task.Task, len(boltTaskIDs))
	for _, id := range boltTaskIDs {
		boltTasks[id] = task.New(id, "counter", boltRegistry, noopSink{})
	}

	bolt := newCountBolt()
	boltExecutor := executor.NewBoltExecutor(executor.Config{
		ComponentID:  "counter",
		TaskIDs:      boltTaskIDs,
		Tasks:        boltTasks,
		ReceiveQueue: boltReceiveQueue,
		Backpressure: boltBackpressure,
		Worker:       boltWorker,
		Logger:       logger,
	}, bolt)

	spoutScheduler := scheduler.New(broadcastPublisher{q: spoutReceiveQueue})
	spoutScheduler.StartSystemTick(topoCfg.GetInt(config.KeyTickTupleFreqSecs))
	defer spoutScheduler.Stop()

	spoutExecutor := executor.NewSpoutExecutor(executor.Config{
		ComponentID:  "word-spout",
		TaskIDs:      []stream.TaskID{spoutTaskID},
		Tasks:        map[stream.TaskID]*task.Task{spoutTaskID: spoutTask},
		ReceiveQueue: spoutReceiveQueue,
		Transfer:     spoutTransfer,
		Scheduler:    spoutScheduler,
		Logger:       logger,
	}, &wordSpout{
		vocab: []string{"storm", "bolt", "spout", "tuple", "grouping"},
		rng:   rand.New(rand.NewSource(1)),
	}, topoCfg.GetInt(config.KeyMaxSpoutPending),
		time.Duration(topoCfg.GetInt(config.KeySleepSpoutWaitStrategy))*time.Millisecond)

	go func() { _ = spoutTransfer.Run(ctx) }()

	// Bridges the demo's single worker: drain the transfer_queue and hand
	// each OutboundTuple batch to the destination task's receive_queue,
	// standing in for the worker transport this core treats as an external
	// collaborator (spec §1).
	go func() {
		for {
			batch, _, _, err := transferQueue.ConsumeOne(ctx)
			if err != nil {
				return
			}
			addressed := make([]stream.AddressedTuple, 0, len(batch))
			for _, ot := range batch {
				addressed = append(addressed, stream.AddressedTuple{Dest: ot.TaskID, Tuple: ot.Tuple})
			}
			_ = boltReceiveQueue.Publish(ctx, addressed)
		}
	}()

	boltExecutor.Run(ctx)
	spoutExecutor.Run(ctx)
	spoutExecutor.RunNextTupleLoop(ctx, spoutTaskID)

	runCtx, cancelRun := context.WithTimeout(ctx, runDuration)
	defer cancelRun()
	<-runCtx.Done()

	boltReceiveQueue.Close()
	spoutReceiveQueue.Close()
	transferQueue.Close()
	boltExecutor.Wait()
	spoutExecutor.Wait()

	fmt.Println("word counts by task:")
	for taskID, counts := range bolt.report() {
		fmt.Printf("  task %d: %v\n", taskID, counts)
	}
	return nil
}
