package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/streamcore/internal/grouping"
	"firestige.xyz/streamcore/internal/stream"
)

type recordingSink struct {
	mu    sync.Mutex
	sent  []stream.Tuple
	dests []stream.TaskID
}

func (s *recordingSink) Transfer(dest stream.TaskID, tuple stream.Tuple) error {
	s.mu.Lock()
	s.sent = append(s.sent, tuple)
	s.dests = append(s.dests, dest)
	s.mu.Unlock()
	return nil
}

// TestTask_StartupNotice covers spec scenario 5: creating a Task and calling
// EmitStartupNotice produces exactly one tuple on __system with fields
// ["startup"] and source task_id=7.
func TestTask_StartupNotice(t *testing.T) {
	reg := grouping.Build(map[stream.StreamID][]grouping.Subscriber{
		stream.StreamSystem: {{ComponentID: "acker", Kind: grouping.Shuffle, Tasks: []stream.TaskID{100}}},
	})
	sink := &recordingSink{}
	tk := New(7, "my-component", reg, sink)

	require.NoError(t, tk.EmitStartupNotice())

	require.Len(t, sink.sent, 1)
	assert.Equal(t, stream.StreamSystem, sink.sent[0].SourceStreamID)
	assert.Equal(t, stream.TaskID(7), sink.sent[0].SourceTaskID)
	assert.Equal(t, stream.Values{"startup"}, sink.sent[0].Fields)
}

func TestTask_Emit_NoSubscribersProducesZeroTransfers(t *testing.T) {
	reg := grouping.Build(map[stream.StreamID][]grouping.Subscriber{
		"orphan": {},
	})
	sink := &recordingSink{}
	tk := New(1, "c", reg, sink)

	dests, err := tk.Emit("orphan", stream.Values{1})
	require.NoError(t, err)
	assert.Empty(t, dests)
	assert.Empty(t, sink.sent)
}

func TestTask_Emit_RoutesThroughGrouperAndUpdatesStats(t *testing.T) {
	reg := grouping.Build(map[stream.StreamID][]grouping.Subscriber{
		"default": {{ComponentID: "down", Kind: grouping.All, Tasks: []stream.TaskID{1, 2, 3}}},
	})
	sink := &recordingSink{}
	tk := New(0, "c", reg, sink)

	dests, err := tk.Emit("default", stream.Values{42})
	require.NoError(t, err)
	assert.ElementsMatch(t, []stream.TaskID{1, 2, 3}, dests)
	assert.Equal(t, uint64(3), tk.Stats().Snapshot().Emitted)
}

func TestLoadRegistry_ReportAndGet(t *testing.T) {
	r := NewLoadRegistry()
	_, ok := r.Get(1)
	assert.False(t, ok)

	r.Report(1, 0.5)
	v, ok := r.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 1, r.Count())

	r.Forget(1)
	assert.Equal(t, 0, r.Count())
}
