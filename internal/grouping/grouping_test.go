package grouping

import (
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/stream"
)

// TestFieldsGrouping_Determinism covers spec scenario 2: downstream task ids
// [10,11,12,13], fields grouper on field "user". All tuples with user="a"
// route to the same task id, equal to 10 + (hash("a") mod 4).
func TestFieldsGrouping_Determinism(t *testing.T) {
	tasks := []stream.TaskID{10, 11, 12, 13}
	reg := Build(map[stream.StreamID][]Subscriber{
		"default": {
			{
				ComponentID: "downstream",
				Kind:        Fields,
				Tasks:       tasks,
				Fields:      []string{"user"},
				FieldIndex:  map[string]int{"user": 0},
			},
		},
	})

	h := fnv.New32a()
	_, _ = h.Write([]byte("a"))
	want := stream.TaskID(10 + int(h.Sum32())%4)

	for i := 0; i < 20; i++ {
		got, err := reg.Select("default", "downstream", stream.Values{"a"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0])
	}
}

// TestNoSubscribers_ZeroTransfers covers spec invariant 3: a stream declared
// with no subscribers is reported as declared with a nil subscriber list, so
// emission short-circuits to zero transfers.
func TestNoSubscribers_ZeroTransfers(t *testing.T) {
	reg := Build(map[stream.StreamID][]Subscriber{
		"orphan": {},
	})

	subs, declared := reg.Subscribers("orphan")
	assert.True(t, declared)
	assert.Nil(t, subs)
}

func TestUndeclaredStream_ErrNoGrouper(t *testing.T) {
	reg := Build(map[stream.StreamID][]Subscriber{})
	_, err := reg.Select("missing", "anyone", stream.Values{1})
	assert.ErrorIs(t, err, execerr.ErrNoGrouper)
}

func TestAllGrouping_EmitsEveryTask(t *testing.T) {
	tasks := []stream.TaskID{1, 2, 3}
	reg := Build(map[stream.StreamID][]Subscriber{
		"default": {{ComponentID: "c", Kind: All, Tasks: tasks}},
	})
	got, err := reg.Select("default", "c", stream.Values{})
	require.NoError(t, err)
	assert.ElementsMatch(t, tasks, got)
}

func TestGlobalGrouping_PicksLowestTask(t *testing.T) {
	tasks := []stream.TaskID{5, 2, 9}
	reg := Build(map[stream.StreamID][]Subscriber{
		"default": {{ComponentID: "c", Kind: Global, Tasks: tasks}},
	})
	for i := 0; i < 5; i++ {
		got, err := reg.Select("default", "c", stream.Values{})
		require.NoError(t, err)
		assert.Equal(t, []stream.TaskID{2}, got)
	}
}

func TestDirectGrouping_RejectsNonMember(t *testing.T) {
	tasks := []stream.TaskID{1, 2, 3}
	reg := Build(map[stream.StreamID][]Subscriber{
		"default": {{ComponentID: "c", Kind: Direct, Tasks: tasks}},
	})

	got, err := reg.SelectDirect("default", "c", 2)
	require.NoError(t, err)
	assert.Equal(t, []stream.TaskID{2}, got)

	_, err = reg.SelectDirect("default", "c", 99)
	assert.ErrorIs(t, err, execerr.ErrDirectNotMember)
}

func TestShuffleGrouping_LoadAwareBiasesAwayFromLoadedTask(t *testing.T) {
	tasks := []stream.TaskID{1, 2}
	reg := Build(map[stream.StreamID][]Subscriber{
		"default": {{ComponentID: "c", Kind: Shuffle, Tasks: tasks}},
	})

	reg.ReportLoad("default", 1, 0.9)
	reg.ReportLoad("default", 2, 0.1)

	got, err := reg.Select("default", "c", stream.Values{})
	require.NoError(t, err)
	assert.Equal(t, []stream.TaskID{2}, got)
}
