// Package kinship builds the small family graph the package tests share.
//
// Six people, three localities (Saturn has no edges at all) and one
// restaurant, joined by fourteen edges. Sharlene has three outgoing edges.
package kinship

import (
	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/graph"
)

// Node types.
const (
	Person     = "Person"
	Locality   = "Locality"
	Restaurant = "Restaurant"
)

// Ages of the people in the fixture.
var Ages = map[string]int{
	"Sharlene": 56,
	"Ceanne":   34,
	"Lainie":   52,
	"Rosita":   20,
	"Lyle":     8,
	"Hilda":    5,
}

// Edges lists the fixture edges in insertion order.
var Edges = []types.Edge{
	{Source: "Sharlene", Target: "Bindoon", Relationship: "Lives In"},
	{Source: "Sharlene", Target: "Ceanne", Relationship: "Daughter"},
	{Source: "Sharlene", Target: "Lainie", Relationship: "Sister"},
	{Source: "Lainie", Target: "Sharlene", Relationship: "Sister"},
	{Source: "Lainie", Target: "Rosita", Relationship: "Daughter"},
	{Source: "Lainie", Target: "Toodyay", Relationship: "Lives In"},
	{Source: "Ceanne", Target: "Lyle", Relationship: "Sister"},
	{Source: "Ceanne", Target: "Hilda", Relationship: "Sister"},
	{Source: "Ceanne", Target: "Burgers Galore", Relationship: "Likes"},
	{Source: "Ceanne", Target: "Bindoon", Relationship: "Lives In"},
	{Source: "Ceanne", Target: "Lainie", Relationship: "Sister"},
	{Source: "Lainie", Target: "Ceanne", Relationship: "Sister"},
	{Source: "Burgers Galore", Target: "Toodyay", Relationship: "Located In"},
	{Source: "Rosita", Target: "Toodyay", Relationship: "Lives In"},
}

// Build returns a fresh copy of the fixture graph.
func Build(opts ...graph.Option) *graph.Store {
	g := graph.New(opts...)
	for _, name := range []string{"Sharlene", "Ceanne", "Lainie", "Rosita", "Lyle", "Hilda"} {
		g.AddNode(name, types.Attributes{
			graph.NodeTypeKey: types.String(Person),
			"name":            types.String(name),
			"age":             types.Int(Ages[name]),
		})
	}
	for _, name := range []string{"Bindoon", "Toodyay", "Saturn"} {
		g.AddNode(name, types.Attributes{
			graph.NodeTypeKey: types.String(Locality),
			"name":            types.String(name),
		})
	}
	g.AddNode("Burgers Galore", types.Attributes{
		graph.NodeTypeKey: types.String(Restaurant),
		"name":            types.String("Burgers Galore"),
		"rating":          types.String("4.5"),
	})

	for _, e := range Edges {
		g.AddEdge(e.Source, e.Target, e.Relationship)
	}
	return g
}
