// Package grouping implements stream groupings (spec §4.3): the compiled
// functions that map an outgoing (stream, values) tuple to the list of
// downstream task ids it must be routed to, compiled once per stream into
// a map of per-destination strategies.
package grouping

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"sync/atomic"

	"github.com/serialx/hashring"

	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/stream"
)

// Grouper maps (stream, values) to downstream task ids within one
// subscribing component. LoadAware groupers additionally consult per-task
// load reported by ReportLoad.
type Grouper interface {
	// Select returns the downstream task ids values should be routed to for
	// the given stream. Never returns an empty, non-nil slice: a grouper with
	// zero candidate tasks is represented at the registry level instead
	// (spec §4.3 invariant).
	Select(streamID stream.StreamID, values stream.Values) ([]stream.TaskID, error)

	// ReportLoad feeds a downstream task id's observed queue load back to
	// load-aware groupers (Shuffle, Custom). A no-op for groupers that don't
	// use it.
	ReportLoad(task stream.TaskID, load float64)
}

// shuffleGrouper round-robins across candidate tasks by default; when load
// samples are present it biases away from the most-loaded tasks, per spec
// §4.3 ("load-aware form biases away from loaded tasks").
type shuffleGrouper struct {
	tasks   []stream.TaskID
	counter uint64
	load    map[stream.TaskID]*atomic.Uint64 // load*1000, fixed-point
}

func newShuffleGrouper(tasks []stream.TaskID) *shuffleGrouper {
	g := &shuffleGrouper{tasks: tasks, load: make(map[stream.TaskID]*atomic.Uint64, len(tasks))}
	for _, t := range tasks {
		g.load[t] = &atomic.Uint64{}
	}
	return g
}

func (g *shuffleGrouper) ReportLoad(task stream.TaskID, load float64) {
	if counter, ok := g.load[task]; ok {
		if load < 0 {
			load = 0
		}
		counter.Store(uint64(load * 1000))
	}
}

func (g *shuffleGrouper) Select(_ stream.StreamID, _ stream.Values) ([]stream.TaskID, error) {
	if len(g.tasks) == 0 {
		return nil, nil
	}

	lightest := g.tasks[0]
	lightestLoad := g.load[lightest].Load()
	anyLoadReported := lightestLoad != 0
	for _, t := range g.tasks[1:] {
		l := g.load[t].Load()
		if l != 0 {
			anyLoadReported = true
		}
		if l < lightestLoad {
			lightest = t
			lightestLoad = l
		}
	}
	if anyLoadReported {
		return []stream.TaskID{lightest}, nil
	}

	idx := atomic.AddUint64(&g.counter, 1) - 1
	return []stream.TaskID{g.tasks[idx%uint64(len(g.tasks))]}, nil
}

// fieldsGrouper hashes the selected field values (fnv) modulo downstream
// task count.
type fieldsGrouper struct {
	tasks  []stream.TaskID
	fields []string
	index  map[string]int
}

func newFieldsGrouper(tasks []stream.TaskID, fields []string, fieldIndex map[string]int) *fieldsGrouper {
	return &fieldsGrouper{tasks: tasks, fields: fields, index: fieldIndex}
}

func (g *fieldsGrouper) ReportLoad(stream.TaskID, float64) {}

func (g *fieldsGrouper) Select(_ stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	if len(g.tasks) == 0 {
		return nil, nil
	}

	h := fnv.New32a()
	for _, f := range g.fields {
		idx, ok := g.index[f]
		if !ok || idx >= len(values) {
			continue
		}
		_, _ = h.Write([]byte(toKeyString(values[idx])))
	}

	pos := int(h.Sum32()) % len(g.tasks)
	if pos < 0 {
		pos += len(g.tasks)
	}
	return []stream.TaskID{g.tasks[pos]}, nil
}

func toKeyString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", s)
	}
}

// allGrouper emits to every downstream task id.
type allGrouper struct{ tasks []stream.TaskID }

func (g *allGrouper) ReportLoad(stream.TaskID, float64) {}
func (g *allGrouper) Select(stream.StreamID, stream.Values) ([]stream.TaskID, error) {
	if len(g.tasks) == 0 {
		return nil, nil
	}
	out := make([]stream.TaskID, len(g.tasks))
	copy(out, g.tasks)
	return out, nil
}

// globalGrouper always picks the lowest-numbered downstream task id.
type globalGrouper struct{ tasks []stream.TaskID }

func (g *globalGrouper) ReportLoad(stream.TaskID, float64) {}
func (g *globalGrouper) Select(stream.StreamID, stream.Values) ([]stream.TaskID, error) {
	if len(g.tasks) == 0 {
		return nil, nil
	}
	lowest := g.tasks[0]
	for _, t := range g.tasks[1:] {
		if t < lowest {
			lowest = t
		}
	}
	return []stream.TaskID{lowest}, nil
}

// directGrouper validates that the emitter-supplied destination is a member
// of the downstream component before accepting it.
type directGrouper struct {
	members map[stream.TaskID]bool
}

func newDirectGrouper(tasks []stream.TaskID) *directGrouper {
	m := make(map[stream.TaskID]bool, len(tasks))
	for _, t := range tasks {
		m[t] = true
	}
	return &directGrouper{members: m}
}

func (g *directGrouper) ReportLoad(stream.TaskID, float64) {}

// SelectDirect validates dest against the downstream component's membership.
// Direct grouping needs the caller-supplied destination, which the Grouper
// interface's Select signature has no room for, so callers route Direct
// streams through SelectDirect instead of Select (Select always errors for
// this grouper to avoid silently dropping an un-validated destination).
func (g *directGrouper) SelectDirect(dest stream.TaskID) ([]stream.TaskID, error) {
	if !g.members[dest] {
		return nil, execerr.ErrDirectNotMember
	}
	return []stream.TaskID{dest}, nil
}

func (g *directGrouper) Select(stream.StreamID, stream.Values) ([]stream.TaskID, error) {
	return nil, execerr.New(execerr.ConfigError, "direct grouping requires an explicit destination; use SelectDirect", nil)
}

// localOrShuffleGrouper prefers tasks local to the given worker, falling
// back to plain shuffle across all candidates otherwise.
type localOrShuffleGrouper struct {
	local   *shuffleGrouper
	fallback *shuffleGrouper
}

func newLocalOrShuffleGrouper(allTasks, localTasks []stream.TaskID) *localOrShuffleGrouper {
	g := &localOrShuffleGrouper{fallback: newShuffleGrouper(allTasks)}
	if len(localTasks) > 0 {
		g.local = newShuffleGrouper(localTasks)
	}
	return g
}

func (g *localOrShuffleGrouper) ReportLoad(task stream.TaskID, load float64) {
	if g.local != nil {
		g.local.ReportLoad(task, load)
	}
	g.fallback.ReportLoad(task, load)
}

func (g *localOrShuffleGrouper) Select(streamID stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	if g.local != nil {
		return g.local.Select(streamID, values)
	}
	return g.fallback.Select(streamID, values)
}

// customGrouper wraps a user-supplied selection function, optionally
// load-aware via the same ReportLoad plumbing as Shuffle.
type customGrouper struct {
	fn   func(streamID stream.StreamID, values stream.Values, tasks []stream.TaskID, load map[stream.TaskID]float64) []stream.TaskID
	tasks []stream.TaskID
	load  map[stream.TaskID]*atomic.Uint64
}

// CustomFunc is the user-supplied selection logic for a Custom grouper.
type CustomFunc func(streamID stream.StreamID, values stream.Values, tasks []stream.TaskID, load map[stream.TaskID]float64) []stream.TaskID

func newCustomGrouper(tasks []stream.TaskID, fn CustomFunc) *customGrouper {
	load := make(map[stream.TaskID]*atomic.Uint64, len(tasks))
	for _, t := range tasks {
		load[t] = &atomic.Uint64{}
	}
	return &customGrouper{fn: fn, tasks: tasks, load: load}
}

func (g *customGrouper) ReportLoad(task stream.TaskID, load float64) {
	if counter, ok := g.load[task]; ok {
		if load < 0 {
			load = 0
		}
		counter.Store(uint64(load * 1000))
	}
}

func (g *customGrouper) Select(streamID stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	snapshot := make(map[stream.TaskID]float64, len(g.load))
	for t, c := range g.load {
		snapshot[t] = float64(c.Load()) / 1000
	}
	return g.fn(streamID, values, g.tasks, snapshot), nil
}

// ringGrouper is the Custom grouper's default when no CustomFunc is
// supplied: consistent-hash placement of the first field value over
// downstream task ids, grounded on the pack's serialx/hashring dependency
// (used elsewhere in the corpus for worker/shard placement). Unlike Fields'
// plain modulo hash, a consistent-hash ring keeps most keys on their
// original task when the downstream task set is resized between topology
// deployments.
type ringGrouper struct {
	ring  *hashring.HashRing
	byKey map[string]stream.TaskID
}

func newRingGrouper(tasks []stream.TaskID) *ringGrouper {
	keys := make([]string, 0, len(tasks))
	byKey := make(map[string]stream.TaskID, len(tasks))
	for _, t := range tasks {
		k := strconv.Itoa(int(t))
		keys = append(keys, k)
		byKey[k] = t
	}
	return &ringGrouper{ring: hashring.New(keys), byKey: byKey}
}

func (g *ringGrouper) ReportLoad(stream.TaskID, float64) {}

func (g *ringGrouper) Select(_ stream.StreamID, values stream.Values) ([]stream.TaskID, error) {
	if len(g.byKey) == 0 {
		return nil, nil
	}
	key := ""
	if len(values) > 0 {
		key = toKeyString(values[0])
	}
	node, ok := g.ring.GetNode(key)
	if !ok {
		return nil, nil
	}
	return []stream.TaskID{g.byKey[node]}, nil
}
