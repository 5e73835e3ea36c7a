// Package graph implements an in-memory directed graph of attributed nodes
// and labeled edges.
//
// Node payloads live in an ordered B+Tree keyed by node id, so iteration is
// always in ascending id order and the node table can be saved in the sorted
// JSON-lines layout that the out-of-core backends read directly. Edges are
// kept per source in insertion order and deduplicated on (target,
// relationship). A secondary attribute index answers equality and range
// filters without scanning every node.
//
// A Store has a build phase (one writer calling AddNode/AddEdge) followed by
// a query phase (any number of readers). It is not synchronized for
// concurrent writers.
package graph

import (
	"fmt"
	"iter"
	"slices"

	"github.com/sanonone/kektorgraph/pkg/core/bptree"
	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// NodeTypeKey is the attribute Epitomize groups nodes by.
const NodeTypeKey = "node_type"

type outEdge struct {
	id           string
	relationship string
}

// Store is a directed graph.
type Store struct {
	order int

	nodes *bptree.Tree[types.Attributes]
	attrs *attrIndex

	sources   []string             // sources in first-edge order
	outgoing  map[string][]outEdge // per-source edges in insertion order
	edgeSet   map[types.Edge]struct{}
	byRel     map[string][]types.Edge
	edgeCount int
}

// Option configures a Store.
type Option func(*Store)

// WithIndexOrder sets the order of the node B+Tree.
func WithIndexOrder(order int) Option {
	return func(s *Store) {
		if order > 0 {
			s.order = order
		}
	}
}

// New returns an empty graph.
func New(opts ...Option) *Store {
	s := &Store{order: bptree.DefaultOrder}
	for _, opt := range opts {
		opt(s)
	}
	s.nodes = bptree.New(s.order, types.Attributes.Equal)
	s.attrs = newAttrIndex()
	s.outgoing = make(map[string][]outEdge)
	s.edgeSet = make(map[types.Edge]struct{})
	s.byRel = make(map[string][]types.Edge)
	return s
}

// IndexOrder returns the order of the node B+Tree.
func (s *Store) IndexOrder() int { return s.order }

// AddNode inserts a node or replaces the payload of an existing one. attrs
// is copied.
func (s *Store) AddNode(id string, attrs types.Attributes) {
	attrs = attrs.Clone()
	if old, ok := s.nodes.First(id); ok {
		s.attrs.remove(id, old)
	}
	s.nodes.Put(id, attrs)
	s.attrs.add(id, attrs)
}

// AddEdge records source -[relationship]-> target. A repeated
// (target, relationship) pair for the same source is ignored. Neither end
// has to exist as a node.
func (s *Store) AddEdge(source, target, relationship string) {
	e := types.Edge{Source: source, Target: target, Relationship: relationship}
	if _, dup := s.edgeSet[e]; dup {
		return
	}
	s.edgeSet[e] = struct{}{}

	if _, seen := s.outgoing[source]; !seen {
		s.sources = append(s.sources, source)
	}
	s.outgoing[source] = append(s.outgoing[source], outEdge{id: target, relationship: relationship})
	s.byRel[relationship] = append(s.byRel[relationship], e)
	s.edgeCount++
}

// Node returns the payload of id. The map is shared with the store and must
// not be modified; use Attributes.Clone for a private copy.
func (s *Store) Node(id string) (types.Attributes, bool) {
	return s.nodes.First(id)
}

// HasNode reports whether id was added as a node.
func (s *Store) HasNode(id string) bool {
	return s.nodes.Has(id)
}

// Len returns the number of nodes.
func (s *Store) Len() int { return s.nodes.Len() }

// EdgeCount returns the number of distinct edges.
func (s *Store) EdgeCount() int { return s.edgeCount }

// Nodes yields node ids in ascending order.
func (s *Store) Nodes() iter.Seq[string] {
	return s.nodes.Keys()
}

// NodesWithAttributes yields (id, payload) pairs in ascending id order.
func (s *Store) NodesWithAttributes() iter.Seq2[string, types.Attributes] {
	return s.nodes.Items()
}

// Edges yields every edge, grouped by source in the order sources first
// gained an edge, and in insertion order within a source.
func (s *Store) Edges() iter.Seq[types.Edge] {
	return func(yield func(types.Edge) bool) {
		for _, src := range s.sources {
			for _, t := range s.outgoing[src] {
				if !yield(types.Edge{Source: src, Target: t.id, Relationship: t.relationship}) {
					return
				}
			}
		}
	}
}

// OutgoingEdges returns the edges leaving id in insertion order. A missing
// node and a node without edges both give an empty result.
func (s *Store) OutgoingEdges(id string) []types.Edge {
	ts := s.outgoing[id]
	out := make([]types.Edge, len(ts))
	for i, t := range ts {
		out[i] = types.Edge{Source: id, Target: t.id, Relationship: t.relationship}
	}
	return out
}

// Relationships returns the distinct edge labels in ascending order.
func (s *Store) Relationships() []string {
	rels := make([]string, 0, len(s.byRel))
	for r := range s.byRel {
		rels = append(rels, r)
	}
	slices.Sort(rels)
	return rels
}

// EdgesByRelationship returns every edge with the given label, in insertion
// order.
func (s *Store) EdgesByRelationship(relationship string) []types.Edge {
	return slices.Clone(s.byRel[relationship])
}

// FindByAttribute returns, in ascending order, the ids of nodes whose
// attribute key equals value.
func (s *Store) FindByAttribute(key string, value types.Value) []string {
	return s.attrs.equal(key, value)
}

// FindByRange returns, ordered by value then id, the ids of nodes with
// lo <= attribute key < hi under types.Compare.
func (s *Store) FindByRange(key string, lo, hi types.Value) []string {
	return s.attrs.between(key, lo, hi)
}

// Copy returns a graph with independent storage. Attribute maps are shared
// until replaced, which AddNode always does wholesale.
func (s *Store) Copy() *Store {
	c := &Store{
		order:     s.order,
		nodes:     s.nodes.Clone(),
		attrs:     s.attrs.copy(),
		sources:   slices.Clone(s.sources),
		outgoing:  make(map[string][]outEdge, len(s.outgoing)),
		edgeSet:   make(map[types.Edge]struct{}, len(s.edgeSet)),
		byRel:     make(map[string][]types.Edge, len(s.byRel)),
		edgeCount: s.edgeCount,
	}
	for src, ts := range s.outgoing {
		c.outgoing[src] = slices.Clone(ts)
	}
	for e := range s.edgeSet {
		c.edgeSet[e] = struct{}{}
	}
	for r, es := range s.byRel {
		c.byRel[r] = slices.Clone(es)
	}
	return c
}

func (s *Store) String() string {
	return fmt.Sprintf("Graph - %d nodes, %d edges", s.Len(), s.EdgeCount())
}

// AttributeCount returns how many nodes carry the attribute key.
func (s *Store) AttributeCount(key string) int {
	return s.attrs.count(key)
}
