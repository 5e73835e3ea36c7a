package graph

import (
	"errors"
	"slices"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// DefaultMaxDepth bounds ShortestPath when no depth is given.
const DefaultMaxDepth = 4

// ErrNoRelationships is returned by ShortestPath without relationship labels.
var ErrNoRelationships = errors.New("at least one relationship must be specified")

// PathResult is a path found by ShortestPath.
type PathResult struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Path   []string     `json:"path"`  // node ids, source first
	Edges  []types.Edge `json:"edges"` // edges traversed, in path order
}

// ShortestPath finds a path with the fewest edges from source to target
// following only edges labeled with one of rels, at most maxDepth edges
// long (DefaultMaxDepth when maxDepth <= 0). It returns nil when there is
// no such path. Ties are broken by edge insertion order.
func (s *Store) ShortestPath(source, target string, rels []string, maxDepth int) (*PathResult, error) {
	if len(rels) == 0 {
		return nil, ErrNoRelationships
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if source == target {
		return &PathResult{Source: source, Target: target, Path: []string{source}}, nil
	}

	wanted := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		wanted[r] = struct{}{}
	}

	// via[n] is the edge that first reached n.
	via := map[string]types.Edge{}
	visited := map[string]struct{}{source: {}}
	queue := []string{source}

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var next []string
		for _, curr := range queue {
			for _, t := range s.outgoing[curr] {
				if _, ok := wanted[t.relationship]; !ok {
					continue
				}
				if _, seen := visited[t.id]; seen {
					continue
				}
				visited[t.id] = struct{}{}
				via[t.id] = types.Edge{Source: curr, Target: t.id, Relationship: t.relationship}
				if t.id == target {
					return buildPath(source, target, via), nil
				}
				next = append(next, t.id)
			}
		}
		queue = next
	}
	return nil, nil
}

func buildPath(source, target string, via map[string]types.Edge) *PathResult {
	var edges []types.Edge
	for n := target; n != source; {
		e := via[n]
		edges = append(edges, e)
		n = e.Source
	}
	slices.Reverse(edges)

	path := make([]string, 0, len(edges)+1)
	path = append(path, source)
	for _, e := range edges {
		path = append(path, e.Target)
	}
	return &PathResult{Source: source, Target: target, Path: path, Edges: edges}
}
