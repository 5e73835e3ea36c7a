// Package bptree implements the ordered multi-value index used to store node
// attributes: a B+ Tree mapping string keys to one or more values.
//
// Inserting an existing key accumulates the value under that key (skipping
// values already present) instead of creating a duplicate entry. Leaves are
// chained left to right, so ordered iteration never revisits internal nodes.
//
// A Tree is not safe for concurrent mutation. Concurrent readers are safe
// once the build phase is over.
package bptree

import (
	"errors"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// DefaultOrder is the maximum number of keys per node when none is given.
const DefaultOrder = 16

var (
	// ErrLengthMismatch is returned by BulkLoad when keys and values differ in length.
	ErrLengthMismatch = errors.New("bptree: keys and values must have the same length")
	// ErrUnsorted is returned by BulkLoad when the keys are not in ascending order.
	ErrUnsorted = errors.New("bptree: bulk load input is not sorted")
)

// node is a single B+ Tree node. Leaves use values, internal nodes use
// children, where keys[i] separates children[i] (keys < keys[i]) from
// children[i+1] (keys >= keys[i]).
type node[V any] struct {
	leaf     bool
	keys     []string
	values   [][]V
	children []*node[V]
	next     *node[V]
}

// Option configures a Tree.
type Option func(*config)

type config struct {
	compare func(a, b string) int
}

// WithComparator orders keys with a custom function. It must define a
// strict total order: distinct keys never compare equal.
func WithComparator(cmp func(a, b string) int) Option {
	return func(c *config) {
		if cmp != nil {
			c.compare = cmp
		}
	}
}

// NumericKeys orders keys that parse as numbers numerically, ahead of all
// non-numeric keys, which keep byte-wise order.
func NumericKeys() Option {
	return WithComparator(CompareNumeric)
}

// CompareNumeric is the comparator installed by NumericKeys.
func CompareNumeric(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if fa < fb {
			return -1
		}
		if fa > fb {
			return 1
		}
		// "1" and "1.0" stay distinct keys.
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Tree is a B+ Tree multi-map from string keys to values of type V.
type Tree[V any] struct {
	order   int
	root    *node[V]
	compare func(a, b string) int
	equal   func(a, b V) bool
	keys    int // unique keys
	count   int // (key, value) pairs
}

// New creates an empty tree. order is the maximum number of keys a node may
// hold (values below 2 are raised to 2). equal decides whether a value is
// already stored under a key.
func New[V any](order int, equal func(a, b V) bool, opts ...Option) *Tree[V] {
	cfg := config{compare: strings.Compare}
	for _, opt := range opts {
		opt(&cfg)
	}
	if order < 2 {
		order = 2
	}
	return &Tree[V]{
		order:   order,
		root:    &node[V]{leaf: true},
		compare: cfg.compare,
		equal:   equal,
	}
}

// Order returns the maximum number of keys per node.
func (t *Tree[V]) Order() int { return t.order }

// Len returns the number of unique keys.
func (t *Tree[V]) Len() int { return t.keys }

// Count returns the number of (key, value) pairs.
func (t *Tree[V]) Count() int { return t.count }

// Height returns the number of levels, 1 for a tree that is a single leaf.
func (t *Tree[V]) Height() int {
	h := 1
	for n := t.root; !n.leaf; n = n.children[0] {
		h++
	}
	return h
}

// Insert adds value under key. If the key exists the value is appended to
// its list unless an equal value is already there.
func (t *Tree[V]) Insert(key string, value V) {
	t.insert(key, value, false)
}

// Put replaces every value stored under key with value.
func (t *Tree[V]) Put(key string, value V) {
	t.insert(key, value, true)
}

func (t *Tree[V]) insert(key string, value V, replace bool) {
	// Descend, remembering the path and the child slot taken at each level.
	var path []*node[V]
	var slots []int
	n := t.root
	for !n.leaf {
		i := t.childIndex(n, key)
		path = append(path, n)
		slots = append(slots, i)
		n = n.children[i]
	}

	i, found := t.search(n, key)
	if found {
		if replace {
			t.count += 1 - len(n.values[i])
			n.values[i] = []V{value}
			return
		}
		if slices.ContainsFunc(n.values[i], func(v V) bool { return t.equal(v, value) }) {
			return
		}
		n.values[i] = append(n.values[i], value)
		t.count++
		return
	}

	n.keys = slices.Insert(n.keys, i, key)
	n.values = slices.Insert(n.values, i, []V{value})
	t.keys++
	t.count++

	if len(n.keys) >= t.order {
		t.splitLeaf(n, path, slots)
	}
}

// splitLeaf splits a full leaf at its midpoint and promotes the first key of
// the new right sibling. Full parents split in turn, up to the root.
func (t *Tree[V]) splitLeaf(leaf *node[V], path []*node[V], slots []int) {
	mid := len(leaf.keys) / 2
	right := &node[V]{
		leaf:   true,
		keys:   slices.Clone(leaf.keys[mid:]),
		values: slices.Clone(leaf.values[mid:]),
		next:   leaf.next,
	}
	leaf.keys = slices.Clip(leaf.keys[:mid])
	leaf.values = slices.Clip(leaf.values[:mid])
	leaf.next = right

	t.promote(leaf, right.keys[0], right, path, slots)
}

func (t *Tree[V]) promote(left *node[V], pivot string, right *node[V], path []*node[V], slots []int) {
	for level := len(path) - 1; level >= 0; level-- {
		parent := path[level]
		i := slots[level]
		parent.keys = slices.Insert(parent.keys, i, pivot)
		parent.children = slices.Insert(parent.children, i+1, right)
		if len(parent.keys) < t.order {
			return
		}
		left = parent
		pivot, right = splitInternal(parent)
	}

	// The root itself split.
	t.root = &node[V]{
		keys:     []string{pivot},
		children: []*node[V]{left, right},
	}
}

// splitInternal moves the upper half of n into a new sibling. The middle key
// moves up and is returned as the pivot.
func splitInternal[V any](n *node[V]) (string, *node[V]) {
	mid := len(n.keys) / 2
	pivot := n.keys[mid]
	right := &node[V]{
		keys:     slices.Clone(n.keys[mid+1:]),
		children: slices.Clone(n.children[mid+1:]),
	}
	n.keys = slices.Clip(n.keys[:mid])
	n.children = slices.Clip(n.children[:mid+1])
	return pivot, right
}

// childIndex returns the slot of the child whose range holds key.
func (t *Tree[V]) childIndex(n *node[V], key string) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.compare(key, n.keys[mid]) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (t *Tree[V]) search(n *node[V], key string) (int, bool) {
	return slices.BinarySearchFunc(n.keys, key, t.compare)
}

func (t *Tree[V]) findLeaf(key string) *node[V] {
	n := t.root
	for !n.leaf {
		n = n.children[t.childIndex(n, key)]
	}
	return n
}

// Retrieve returns the values stored under key, or nil when the key is
// absent. The returned slice is a copy.
func (t *Tree[V]) Retrieve(key string) []V {
	n := t.findLeaf(key)
	if i, ok := t.search(n, key); ok {
		return slices.Clone(n.values[i])
	}
	return nil
}

// Lookup is Retrieve behind the error-returning contract shared with the
// out-of-core backends. The error is always nil.
func (t *Tree[V]) Lookup(key string) ([]V, error) {
	return t.Retrieve(key), nil
}

// Has reports whether key is present.
func (t *Tree[V]) Has(key string) bool {
	_, ok := t.search(t.findLeaf(key), key)
	return ok
}

// First returns the first value stored under key.
func (t *Tree[V]) First(key string) (V, bool) {
	n := t.findLeaf(key)
	if i, ok := t.search(n, key); ok && len(n.values[i]) > 0 {
		return n.values[i][0], true
	}
	var zero V
	return zero, false
}

func (t *Tree[V]) leftmostLeaf() *node[V] {
	n := t.root
	for !n.leaf {
		n = n.children[0]
	}
	return n
}

// Keys yields the unique keys in ascending order. Each call starts a new walk.
func (t *Tree[V]) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for n := t.leftmostLeaf(); n != nil; n = n.next {
			for _, k := range n.keys {
				if !yield(k) {
					return
				}
			}
		}
	}
}

// Items yields one (key, value) pair per stored value, in key order and in
// insertion order within a key. Each call starts a new walk.
func (t *Tree[V]) Items() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for n := t.leftmostLeaf(); n != nil; n = n.next {
			for i, k := range n.keys {
				for _, v := range n.values[i] {
					if !yield(k, v) {
						return
					}
				}
			}
		}
	}
}

// Ascend calls fn for every key >= from in ascending order with the values
// stored under it, until fn returns false.
func (t *Tree[V]) Ascend(from string, fn func(key string, values []V) bool) {
	n := t.findLeaf(from)
	i, _ := t.search(n, from)
	for ; n != nil; n, i = n.next, 0 {
		for ; i < len(n.keys); i++ {
			if !fn(n.keys[i], n.values[i]) {
				return
			}
		}
	}
}

// Clone returns a structurally independent copy of the tree. Values are
// copied by assignment.
func (t *Tree[V]) Clone() *Tree[V] {
	var prev *node[V]
	var cloneNode func(n *node[V]) *node[V]
	cloneNode = func(n *node[V]) *node[V] {
		c := &node[V]{leaf: n.leaf, keys: slices.Clone(n.keys)}
		if n.leaf {
			c.values = make([][]V, len(n.values))
			for i, vs := range n.values {
				c.values[i] = slices.Clone(vs)
			}
			// Leaves are visited left to right, so relink the chain as we go.
			if prev != nil {
				prev.next = c
			}
			prev = c
			return c
		}
		c.children = make([]*node[V], len(n.children))
		for i, child := range n.children {
			c.children[i] = cloneNode(child)
		}
		return c
	}

	return &Tree[V]{
		order:   t.order,
		root:    cloneNode(t.root),
		compare: t.compare,
		equal:   t.equal,
		keys:    t.keys,
		count:   t.count,
	}
}
