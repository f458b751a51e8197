package grouping

import (
	"firestige.xyz/streamcore/internal/execerr"
	"firestige.xyz/streamcore/internal/metrics"
	"firestige.xyz/streamcore/internal/stream"
)

// Kind enumerates the grouping variants spec §4.3 names.
type Kind int

const (
	Shuffle Kind = iota
	Fields
	All
	Global
	None
	Direct
	LocalOrShuffle
	Custom
)

// Subscriber declares one downstream component a stream fans out to: its
// grouping kind, the set of its task ids, and — for LocalOrShuffle — which
// of those happen to be local to this worker.
type Subscriber struct {
	ComponentID stream.ComponentID
	Kind        Kind
	Tasks       []stream.TaskID
	LocalTasks  []stream.TaskID // only consulted for LocalOrShuffle
	Fields      []string        // only consulted for Fields
	FieldIndex  map[string]int  // name -> position in Values, only for Fields
	CustomFunc  CustomFunc      // only consulted for Custom
}

// compiledGrouper pairs a compiled Grouper with its declared Kind's metric
// label, so Select can report streamcore_tuples_routed_total without every
// Grouper implementation needing to know its own label.
type compiledGrouper struct {
	Grouper
	kindLabel string
}

var kindLabels = map[Kind]string{
	Shuffle:        "shuffle",
	Fields:         "fields",
	All:            "all",
	Global:         "global",
	None:           "none",
	Direct:         "direct",
	LocalOrShuffle: "local_or_shuffle",
	Custom:         "custom",
}

// Registry is the compiled stream_to_component_to_grouper table from spec
// §3/§4.3: a nil inner map records a declared stream with no subscribers.
// order records each stream's subscribing component ids in declaration
// order, since Go map iteration order is randomized and §4.4 requires
// outgoing_tasks to flatten fan-out deterministically.
type Registry struct {
	table map[stream.StreamID]map[stream.ComponentID]compiledGrouper
	order map[stream.StreamID][]stream.ComponentID
}

// Build compiles a Registry from the declared outgoing streams of one
// component. streams maps each declared outgoing stream id to its
// subscribers (possibly empty, meaning "declared but nobody subscribes").
func Build(streams map[stream.StreamID][]Subscriber) *Registry {
	r := &Registry{
		table: make(map[stream.StreamID]map[stream.ComponentID]compiledGrouper),
		order: make(map[stream.StreamID][]stream.ComponentID),
	}

	for streamID, subs := range streams {
		if len(subs) == 0 {
			r.table[streamID] = nil
			continue
		}
		inner := make(map[stream.ComponentID]compiledGrouper, len(subs))
		order := make([]stream.ComponentID, 0, len(subs))
		for _, sub := range subs {
			inner[sub.ComponentID] = compiledGrouper{Grouper: compile(sub), kindLabel: kindLabels[sub.Kind]}
			order = append(order, sub.ComponentID)
		}
		r.table[streamID] = inner
		r.order[streamID] = order
	}

	return r
}

func compile(sub Subscriber) Grouper {
	switch sub.Kind {
	case Shuffle, None:
		return newShuffleGrouper(sub.Tasks)
	case Fields:
		return newFieldsGrouper(sub.Tasks, sub.Fields, sub.FieldIndex)
	case All:
		return &allGrouper{tasks: sub.Tasks}
	case Global:
		return &globalGrouper{tasks: sub.Tasks}
	case Direct:
		return newDirectGrouper(sub.Tasks)
	case LocalOrShuffle:
		return newLocalOrShuffleGrouper(sub.Tasks, sub.LocalTasks)
	case Custom:
		if sub.CustomFunc == nil {
			return newRingGrouper(sub.Tasks)
		}
		return newCustomGrouper(sub.Tasks, sub.CustomFunc)
	default:
		return newShuffleGrouper(sub.Tasks)
	}
}

// Select resolves downstream task ids for one subscribing component on a
// stream. Returns (nil, nil) if the stream has no subscribers at all
// (spec §4.3 invariant), execerr.ErrNoGrouper if streamID was never declared.
func (r *Registry) Select(streamID stream.StreamID, componentID stream.ComponentID, values stream.Values) ([]stream.TaskID, error) {
	inner, declared := r.table[streamID]
	if !declared {
		return nil, execerr.ErrNoGrouper
	}
	if inner == nil {
		return nil, nil
	}
	g, ok := inner[componentID]
	if !ok {
		return nil, execerr.ErrNoGrouper
	}
	dests, err := g.Select(streamID, values)
	if err == nil {
		metrics.TuplesRoutedTotal.WithLabelValues(string(streamID), g.kindLabel).Add(float64(len(dests)))
	}
	return dests, err
}

// SelectDirect resolves a Direct-grouping destination, validating membership.
func (r *Registry) SelectDirect(streamID stream.StreamID, componentID stream.ComponentID, dest stream.TaskID) ([]stream.TaskID, error) {
	inner, declared := r.table[streamID]
	if !declared || inner == nil {
		return nil, execerr.ErrNoGrouper
	}
	cg, ok := inner[componentID]
	if !ok {
		return nil, execerr.ErrNoGrouper
	}
	g, ok := cg.Grouper.(*directGrouper)
	if !ok {
		return nil, execerr.New(execerr.ConfigError, "stream/component is not Direct-grouped", nil)
	}
	dests, err := g.SelectDirect(dest)
	if err == nil {
		metrics.TuplesRoutedTotal.WithLabelValues(string(streamID), cg.kindLabel).Add(float64(len(dests)))
	}
	return dests, err
}

// Subscribers returns every downstream component id subscribed to streamID,
// in declaration order — the order Task.OutgoingTasks (spec §4.4) flattens
// fan-out in, per the resolver-determinism invariant in spec §3.
func (r *Registry) Subscribers(streamID stream.StreamID) ([]stream.ComponentID, bool) {
	inner, declared := r.table[streamID]
	if !declared {
		return nil, false
	}
	if inner == nil {
		return nil, true
	}
	out := make([]stream.ComponentID, len(r.order[streamID]))
	copy(out, r.order[streamID])
	return out, true
}

// ReportLoad forwards a load sample to every grouper subscribed to streamID,
// so load-aware groupers (Shuffle, Custom) can bias selection.
func (r *Registry) ReportLoad(streamID stream.StreamID, task stream.TaskID, load float64) {
	inner := r.table[streamID]
	for _, g := range inner {
		g.ReportLoad(task, load)
	}
}
