package graph_test

import (
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/internal/kinship"
	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/graph"
)

func TestBreadthFirstSearch(t *testing.T) {
	g := kinship.Build()

	covered := map[string]bool{"Sharlene": true}
	var pairs int
	for parent, child := range g.BreadthFirstSearch("Sharlene") {
		assert.True(t, covered[parent], "parent %s is yielded before its children", parent)
		assert.False(t, covered[child], "child %s reported twice", child)
		covered[child] = true
		pairs++
	}
	assert.Equal(t, 8, pairs)
	assert.Len(t, covered, 9)
	assert.False(t, covered["Saturn"])
}

func TestBreadthFirstSearchFirstLevel(t *testing.T) {
	g := kinship.Build()

	var first []string
	for parent, child := range g.BreadthFirstSearch("Sharlene") {
		if parent != "Sharlene" {
			break
		}
		first = append(first, child)
	}
	assert.Equal(t, []string{"Bindoon", "Ceanne", "Lainie"}, first)
}

func TestBreadthFirstSearchEdgeCases(t *testing.T) {
	g := kinship.Build()
	assert.Empty(t, slices.Collect(pairsOf(g, "Saturn")))
	assert.Empty(t, slices.Collect(pairsOf(g, "Pluto")))

	cycle := graph.New()
	cycle.AddEdge("a", "b", "next")
	cycle.AddEdge("b", "c", "next")
	cycle.AddEdge("c", "a", "next")
	assert.Equal(t, []string{"a>b", "b>c"}, slices.Collect(pairsOf(cycle, "a")))
}

func pairsOf(g *graph.Store, source string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for p, c := range g.BreadthFirstSearch(source) {
			if !yield(p + ">" + c) {
				return
			}
		}
	}
}

func TestDescendantsAtDistance(t *testing.T) {
	g := kinship.Build()

	tests := []struct {
		source   string
		distance int
		want     int
	}{
		{"Sharlene", 0, 1},
		{"Sharlene", 1, 3},
		{"Sharlene", 2, 9},
		{"Saturn", 1, 0},
		{"Pluto", 1, 0},
		{"Sharlene", -1, 0},
	}
	for _, tt := range tests {
		got := g.DescendantsAtDistance(tt.source, tt.distance)
		assert.Len(t, got, tt.want, "%s at %d: %v", tt.source, tt.distance, got)
		assert.True(t, slices.IsSorted(got))
	}

	assert.Equal(t, []string{"Bindoon", "Ceanne", "Lainie"}, g.DescendantsAtDistance("Sharlene", 1))
	assert.Contains(t, g.DescendantsAtDistance("Sharlene", 2), "Sharlene", "walks may return to the source")
	assert.Equal(t, []string{"Sharlene"}, g.DescendantsAtDistance("Sharlene", 0))
}

func TestNodesWithin(t *testing.T) {
	g := kinship.Build()

	assert.Equal(t, []string{"Bindoon", "Ceanne", "Lainie", "Sharlene"}, g.NodesWithin("Sharlene", 1))
	assert.Len(t, g.NodesWithin("Sharlene", 10), 9)
	assert.Equal(t, []string{"Saturn"}, g.NodesWithin("Saturn", 3))
	assert.Nil(t, g.NodesWithin("Sharlene", -1))
}

func TestSubgraph(t *testing.T) {
	g := kinship.Build()

	sub := g.Subgraph([]string{"Sharlene", "Ceanne", "Lainie", "Nobody"})
	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, 5, sub.EdgeCount())
	assert.False(t, sub.HasNode("Nobody"))

	attrs, ok := sub.Node("Ceanne")
	require.True(t, ok)
	assert.Equal(t, types.Int(34), attrs.Get("age"))

	in := map[string]bool{"Sharlene": true, "Ceanne": true, "Lainie": true}
	for e := range sub.Edges() {
		assert.True(t, in[e.Source] && in[e.Target], "edge %s leaves the subgraph", e)
	}

	assert.Equal(t, 0, g.Subgraph(nil).Len())
}

func TestSubgraphKeepsDanglingEdges(t *testing.T) {
	g := graph.New()
	g.AddNode("a", types.Attributes{})
	g.AddNode("b", types.Attributes{})
	g.AddEdge("a", "ghost", "r")
	g.AddEdge("a", "b", "r")
	g.AddEdge("a", "elsewhere", "r")

	sub := g.Subgraph([]string{"a", "ghost"})
	assert.Equal(t, []string{"a"}, slices.Collect(sub.Nodes()))
	assert.False(t, sub.HasNode("ghost"))
	assert.Equal(t, []types.Edge{{Source: "a", Target: "ghost", Relationship: "r"}}, slices.Collect(sub.Edges()))
}

func TestEpitomize(t *testing.T) {
	g := kinship.Build()
	e := g.Epitomize()

	assert.Equal(t, []string{kinship.Locality, kinship.Person, kinship.Restaurant}, slices.Collect(e.Nodes()))
	assert.Equal(t, 5, e.EdgeCount())

	attrs, ok := e.Node(kinship.Person)
	require.True(t, ok)
	assert.Equal(t, types.Attributes{graph.NodeTypeKey: types.String(kinship.Person)}, attrs)

	want := []types.Edge{
		{Source: kinship.Person, Target: kinship.Locality, Relationship: "Lives In"},
		{Source: kinship.Person, Target: kinship.Person, Relationship: "Daughter"},
		{Source: kinship.Person, Target: kinship.Person, Relationship: "Sister"},
		{Source: kinship.Person, Target: kinship.Restaurant, Relationship: "Likes"},
		{Source: kinship.Restaurant, Target: kinship.Locality, Relationship: "Located In"},
	}
	assert.ElementsMatch(t, want, slices.Collect(e.Edges()))
}

func TestEpitomizeSkipsUntypedAndDangling(t *testing.T) {
	g := graph.New()
	g.AddNode("a", types.Attributes{graph.NodeTypeKey: types.String("T")})
	g.AddNode("b", types.Attributes{"name": types.String("no type")})
	g.AddEdge("a", "b", "r")
	g.AddEdge("a", "ghost", "r")
	g.AddEdge("a", "a", "self")

	e := g.Epitomize()
	assert.Equal(t, []string{"T"}, slices.Collect(e.Nodes()))
	assert.Equal(t, []types.Edge{{Source: "T", Target: "T", Relationship: "self"}}, slices.Collect(e.Edges()))
}

func TestEpitomizeUsesStringTypesOnly(t *testing.T) {
	g := graph.New()
	g.AddNode("a", types.Attributes{graph.NodeTypeKey: types.String("1")})
	g.AddNode("b", types.Attributes{graph.NodeTypeKey: types.Int(1)})
	g.AddNode("c", types.Attributes{graph.NodeTypeKey: types.Null()})
	g.AddEdge("a", "b", "r")
	g.AddEdge("a", "a", "self")

	e := g.Epitomize()
	assert.Equal(t, []string{"1"}, slices.Collect(e.Nodes()))
	attrs, ok := e.Node("1")
	require.True(t, ok)
	assert.Equal(t, types.String("1"), attrs.Get(graph.NodeTypeKey))
	assert.Equal(t, []types.Edge{{Source: "1", Target: "1", Relationship: "self"}}, slices.Collect(e.Edges()))
}
