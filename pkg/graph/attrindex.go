package graph

import (
	"github.com/tidwall/btree"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// attrItem associates an attribute value with a node id.
type attrItem struct {
	Value  types.Value
	NodeID string
}

// attrItemLess sorts by value, then by node id to keep items distinct.
func attrItemLess(a, b attrItem) bool {
	if c := types.Compare(a.Value, b.Value); c != 0 {
		return c < 0
	}
	return a.NodeID < b.NodeID
}

// attrIndex maps attribute name -> ordered (value, node id) set.
type attrIndex struct {
	trees map[string]*btree.BTreeG[attrItem]
}

func newAttrIndex() *attrIndex {
	return &attrIndex{trees: make(map[string]*btree.BTreeG[attrItem])}
}

func (x *attrIndex) add(id string, attrs types.Attributes) {
	for key, v := range attrs {
		tree, ok := x.trees[key]
		if !ok {
			tree = btree.NewBTreeG[attrItem](attrItemLess)
			x.trees[key] = tree
		}
		tree.Set(attrItem{Value: v, NodeID: id})
	}
}

func (x *attrIndex) remove(id string, attrs types.Attributes) {
	for key, v := range attrs {
		if tree, ok := x.trees[key]; ok {
			tree.Delete(attrItem{Value: v, NodeID: id})
			if tree.Len() == 0 {
				delete(x.trees, key)
			}
		}
	}
}

// equal returns the ids holding value under key, ascending.
func (x *attrIndex) equal(key string, value types.Value) []string {
	tree, ok := x.trees[key]
	if !ok {
		return nil
	}
	var ids []string
	tree.Ascend(attrItem{Value: value}, func(item attrItem) bool {
		if types.Compare(item.Value, value) != 0 {
			return false
		}
		ids = append(ids, item.NodeID)
		return true
	})
	return ids
}

// between returns the ids with lo <= value < hi, ordered by value then id.
func (x *attrIndex) between(key string, lo, hi types.Value) []string {
	tree, ok := x.trees[key]
	if !ok {
		return nil
	}
	var ids []string
	tree.Ascend(attrItem{Value: lo}, func(item attrItem) bool {
		if types.Compare(item.Value, hi) >= 0 {
			return false
		}
		ids = append(ids, item.NodeID)
		return true
	})
	return ids
}

// count returns how many nodes carry key.
func (x *attrIndex) count(key string) int {
	if tree, ok := x.trees[key]; ok {
		return tree.Len()
	}
	return 0
}

func (x *attrIndex) copy() *attrIndex {
	c := &attrIndex{trees: make(map[string]*btree.BTreeG[attrItem], len(x.trees))}
	for key, tree := range x.trees {
		c.trees[key] = tree.Copy()
	}
	return c
}
