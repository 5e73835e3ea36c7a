package graph

import (
	"iter"
	"slices"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// BreadthFirstSearch yields the (parent, child) edges of a breadth-first
// spanning walk from source. Every reachable node is reported once as a
// child; the walk terminates on cyclic graphs. A missing source, or one
// without outgoing edges, yields nothing.
func (s *Store) BreadthFirstSearch(source string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		visited := map[string]struct{}{source: {}}
		queue := []string{source}
		for len(queue) > 0 {
			parent := queue[0]
			queue = queue[1:]
			for _, t := range s.outgoing[parent] {
				if _, seen := visited[t.id]; seen {
					continue
				}
				visited[t.id] = struct{}{}
				if !yield(parent, t.id) {
					return
				}
				queue = append(queue, t.id)
			}
		}
	}
}

// DescendantsAtDistance returns, in ascending order, the nodes at the end of
// a walk of exactly distance edges from source. Nodes reached earlier are
// not excluded, so on cyclic graphs the source itself can reappear.
// Distance 0 gives {source}; a negative distance gives nothing.
func (s *Store) DescendantsAtDistance(source string, distance int) []string {
	if distance < 0 {
		return nil
	}
	frontier := map[string]struct{}{source: {}}
	for step := 0; step < distance && len(frontier) > 0; step++ {
		next := make(map[string]struct{})
		for id := range frontier {
			for _, t := range s.outgoing[id] {
				next[t.id] = struct{}{}
			}
		}
		frontier = next
	}
	return sortedKeys(frontier)
}

// NodesWithin returns, in ascending order, every node reachable from source
// in at most maxDistance edges, source included.
func (s *Store) NodesWithin(source string, maxDistance int) []string {
	if maxDistance < 0 {
		return nil
	}
	visited := map[string]struct{}{source: {}}
	frontier := []string{source}
	for step := 0; step < maxDistance && len(frontier) > 0; step++ {
		var next []string
		for _, id := range frontier {
			for _, t := range s.outgoing[id] {
				if _, seen := visited[t.id]; !seen {
					visited[t.id] = struct{}{}
					next = append(next, t.id)
				}
			}
		}
		frontier = next
	}
	return sortedKeys(visited)
}

// Subgraph returns a new graph holding the given nodes that exist here, and
// the edges whose ends are both among ids. An id with no stored node gets
// no node in the result, but edges that reach it are still copied.
func (s *Store) Subgraph(ids []string) *Store {
	keep := make(map[string]struct{}, len(ids))
	sub := New(WithIndexOrder(s.order))
	for _, id := range ids {
		keep[id] = struct{}{}
		if attrs, ok := s.Node(id); ok {
			sub.AddNode(id, attrs)
		}
	}
	for e := range s.Edges() {
		_, okSrc := keep[e.Source]
		_, okDst := keep[e.Target]
		if okSrc && okDst {
			sub.AddEdge(e.Source, e.Target, e.Relationship)
		}
	}
	return sub
}

// Epitomize summarizes the graph's schema: one node per distinct node_type
// (id and node_type both set to the type name) and one edge per distinct
// (source type, target type, relationship) among edges whose ends both
// exist. Only string node_type values name a type; nodes with any other
// node_type, or none, are left out.
func (s *Store) Epitomize() *Store {
	summary := New(WithIndexOrder(s.order))
	typeOf := func(id string) (string, bool) {
		attrs, ok := s.Node(id)
		if !ok {
			return "", false
		}
		v, ok := attrs.Lookup(NodeTypeKey)
		if !ok {
			return "", false
		}
		return v.Str()
	}

	for id := range s.Nodes() {
		if t, ok := typeOf(id); ok && !summary.HasNode(t) {
			summary.AddNode(t, types.Attributes{NodeTypeKey: types.String(t)})
		}
	}
	for e := range s.Edges() {
		src, ok := typeOf(e.Source)
		if !ok {
			continue
		}
		dst, ok := typeOf(e.Target)
		if !ok {
			continue
		}
		summary.AddEdge(src, dst, e.Relationship)
	}
	return summary
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
