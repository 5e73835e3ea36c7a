// Package query provides a Gremlin-style traversal over a graph.Store.
//
// A Traversal is an immutable selection of node ids. Every step returns a new
// Traversal and never changes its receiver, so partial chains can be kept
// and reused:
//
//	people := query.New(g).Has("node_type", types.String("Person"))
//	inBindoon := people.Out("Lives In").Has("name", types.String("Bindoon"))
//	counts := people.GroupCount("age")
//
// Traversals are safe for concurrent readers once the graph is no longer
// being built.
package query

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/metrics"
)

// ErrNodeNotFound is reported by V in strict mode when none of the
// requested ids exist.
var ErrNodeNotFound = errors.New("node not found")

// Matcher decides whether a node belongs in a Select result.
type Matcher interface {
	Match(attrs types.Attributes) bool
}

// MatchFunc adapts a function to Matcher.
type MatchFunc func(attrs types.Attributes) bool

func (f MatchFunc) Match(attrs types.Attributes) bool { return f(attrs) }

// Option configures New.
type Option func(*settings)

type settings struct {
	strict bool
}

// StrictSeeding makes V fail with ErrNodeNotFound instead of returning an
// empty selection when none of its ids exist.
func StrictSeeding() Option {
	return func(s *settings) { s.strict = true }
}

// snapshot is the id -> attributes table of the whole graph, read at most
// once per traversal root and shared by every step derived from it.
type snapshot struct {
	g     *graph.Store
	once  sync.Once
	nodes map[string]types.Attributes
}

func (s *snapshot) attrs() map[string]types.Attributes {
	s.once.Do(func() {
		s.nodes = make(map[string]types.Attributes, s.g.Len())
		for id, a := range s.g.NodesWithAttributes() {
			s.nodes[id] = a
		}
	})
	return s.nodes
}

// Traversal is an immutable node selection over a graph.
type Traversal struct {
	g        *graph.Store
	settings settings
	snap     *snapshot

	ids []string // sorted, distinct
	err error

	once  sync.Once
	cache map[string]types.Attributes
}

// New starts a traversal selecting every node of g.
func New(g *graph.Store, opts ...Option) *Traversal {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	return &Traversal{
		g:        g,
		settings: s,
		snap:     &snapshot{g: g},
		ids:      slices.Collect(g.Nodes()),
	}
}

// derive returns a traversal over ids that shares t's graph and snapshot.
func (t *Traversal) derive(ids []string, err error) *Traversal {
	return &Traversal{g: t.g, settings: t.settings, snap: t.snap, ids: ids, err: err}
}

func (t *Traversal) step(name string) {
	metrics.TraversalSteps.WithLabelValues(name).Inc()
}

// attrs is the per-traversal id -> attributes view, built on first use.
func (t *Traversal) attrs() map[string]types.Attributes {
	t.once.Do(func() {
		all := t.snap.attrs()
		t.cache = make(map[string]types.Attributes, len(t.ids))
		for _, id := range t.ids {
			t.cache[id] = all[id]
		}
	})
	return t.cache
}

// V restarts from the graph with exactly the given ids that exist, or with
// every node when called without ids.
func (t *Traversal) V(ids ...string) *Traversal {
	t.step("v")
	root := &Traversal{g: t.g, settings: t.settings, snap: &snapshot{g: t.g}}
	if len(ids) == 0 {
		root.ids = slices.Collect(t.g.Nodes())
		return root
	}

	found := make([]string, 0, len(ids))
	for _, id := range ids {
		if t.g.HasNode(id) {
			found = append(found, id)
		}
	}
	slices.Sort(found)
	root.ids = slices.Compact(found)
	if len(root.ids) == 0 && t.settings.strict {
		root.err = fmt.Errorf("%w: %q", ErrNodeNotFound, ids)
	}
	return root
}

// Has keeps the nodes whose attribute key equals value. Nodes without the
// attribute are dropped.
func (t *Traversal) Has(key string, value types.Value) *Traversal {
	t.step("has")
	if t.err != nil {
		return t.derive(nil, t.err)
	}

	// Go through the attribute index when it narrows the work.
	if t.g.AttributeCount(key) < len(t.ids) {
		all := t.snap.attrs()
		return t.derive(t.intersect(t.g.FindByAttribute(key, value), func(id string) bool {
			v, ok := all[id].Lookup(key)
			return ok && v == value
		}), nil)
	}

	cache := t.attrs()
	return t.filter(func(id string) bool {
		v, ok := cache[id].Lookup(key)
		return ok && v == value
	})
}

// HasRange keeps the nodes whose attribute key lies in [lo, hi) under
// types.Compare. Values of another kind than the bounds never match unless
// the bounds straddle kinds.
func (t *Traversal) HasRange(key string, lo, hi types.Value) *Traversal {
	t.step("has_range")
	if t.err != nil {
		return t.derive(nil, t.err)
	}
	all := t.snap.attrs()
	return t.derive(t.intersect(t.g.FindByRange(key, lo, hi), func(id string) bool {
		v, ok := all[id].Lookup(key)
		return ok && types.Compare(lo, v) <= 0 && types.Compare(v, hi) < 0
	}), nil)
}

// Out moves to the distinct targets of edges leaving the selection whose
// relationship is one of rels. Targets that are not nodes of the graph are
// dropped. Without rels the result is empty.
func (t *Traversal) Out(rels ...string) *Traversal {
	t.step("out")
	if t.err != nil || len(rels) == 0 {
		return t.derive(nil, t.err)
	}

	wanted := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		wanted[r] = struct{}{}
	}
	targets := make(map[string]struct{})
	for _, id := range t.ids {
		for _, e := range t.g.OutgoingEdges(id) {
			if _, ok := wanted[e.Relationship]; ok && t.g.HasNode(e.Target) {
				targets[e.Target] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return t.derive(ids, nil)
}

// Follow is an alias for Out.
func (t *Traversal) Follow(rels ...string) *Traversal {
	return t.Out(rels...)
}

// Select keeps the nodes whose attributes m accepts.
func (t *Traversal) Select(m Matcher) *Traversal {
	t.step("select")
	if t.err != nil {
		return t.derive(nil, t.err)
	}
	cache := t.attrs()
	return t.filter(func(id string) bool {
		return m.Match(cache[id])
	})
}

func (t *Traversal) filter(keep func(id string) bool) *Traversal {
	ids := make([]string, 0, len(t.ids))
	for _, id := range t.ids {
		if keep(id) {
			ids = append(ids, id)
		}
	}
	return t.derive(ids, nil)
}

// intersect returns the candidates, sorted, that are selected and pass ok.
func (t *Traversal) intersect(candidates []string, ok func(id string) bool) []string {
	slices.Sort(candidates)
	ids := make([]string, 0, min(len(candidates), len(t.ids)))
	for _, id := range candidates {
		if _, found := slices.BinarySearch(t.ids, id); found && ok(id) {
			ids = append(ids, id)
		}
	}
	return slices.Compact(ids)
}

// Values returns the distinct values of key over the selection, ordered by
// types.Compare. A node without the attribute contributes Null.
func (t *Traversal) Values(key string) []types.Value {
	t.step("values")
	seen := make(map[types.Value]struct{})
	for _, a := range t.attrs() {
		seen[a.Get(key)] = struct{}{}
	}
	out := make([]types.Value, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.SortFunc(out, types.Compare)
	return out
}

// GroupCount counts the selected nodes per value of key; nodes without the
// attribute are counted under Null. The counts sum to Len.
func (t *Traversal) GroupCount(key string) map[types.Value]int {
	t.step("group_count")
	counts := make(map[types.Value]int)
	for _, a := range t.attrs() {
		counts[a.Get(key)]++
	}
	return counts
}

func (t *Traversal) numbers(key string) []float64 {
	var xs []float64
	for _, a := range t.attrs() {
		if f, ok := a.Get(key).AsFloat(); ok {
			xs = append(xs, f)
		}
	}
	return xs
}

// Mean averages the numeric values of key over the selection. Numeric
// strings count; other values are ignored. ok is false when nothing numeric
// was found.
func (t *Traversal) Mean(key string) (mean float64, ok bool) {
	t.step("mean")
	xs := t.numbers(key)
	if len(xs) == 0 {
		return 0, false
	}
	return stat.Mean(xs, nil), true
}

// Min is the smallest numeric value of key over the selection.
func (t *Traversal) Min(key string) (float64, bool) {
	t.step("min")
	xs := t.numbers(key)
	if len(xs) == 0 {
		return 0, false
	}
	return floats.Min(xs), true
}

// Max is the largest numeric value of key over the selection.
func (t *Traversal) Max(key string) (float64, bool) {
	t.step("max")
	xs := t.numbers(key)
	if len(xs) == 0 {
		return 0, false
	}
	return floats.Max(xs), true
}

// Nodes returns the selected ids in ascending order.
func (t *Traversal) Nodes() []string {
	return slices.Clone(t.ids)
}

// NodesWithAttributes returns the selected ids with their payloads. The
// payload maps are shared with the graph and must not be modified.
func (t *Traversal) NodesWithAttributes() map[string]types.Attributes {
	return maps.Clone(t.attrs())
}

// Edges yields every edge of the underlying graph, not just those touching
// the selection.
func (t *Traversal) Edges() iter.Seq[types.Edge] {
	return t.g.Edges()
}

// Len returns the number of selected nodes.
func (t *Traversal) Len() int { return len(t.ids) }

// Err returns the error carried along the chain, if any.
func (t *Traversal) Err() error { return t.err }

func (t *Traversal) String() string {
	if t.err != nil {
		return fmt.Sprintf("Traversal - error: %v", t.err)
	}
	return fmt.Sprintf("Traversal - %d nodes", len(t.ids))
}
