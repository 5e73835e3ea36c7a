package bptree

import "slices"

// BulkLoad builds a tree directly from keys and values that are already
// sorted by key, without going through incremental splits. values[i] is
// stored under keys[i]; runs of equal keys are grouped under a single entry
// in input order, dropping values equal to one already in the group.
//
// Leaves are packed with order-1 keys and internal levels are built bottom
// up, so construction is linear in the input size.
func BulkLoad[V any](keys []string, values []V, order int, equal func(a, b V) bool, opts ...Option) (*Tree[V], error) {
	if len(keys) != len(values) {
		return nil, ErrLengthMismatch
	}
	t := New(order, equal, opts...)
	if len(keys) == 0 {
		return t, nil
	}

	// 1. Group adjacent equal keys.
	uniq := make([]string, 0, len(keys))
	groups := make([][]V, 0, len(keys))
	for i, k := range keys {
		if i > 0 {
			c := t.compare(k, keys[i-1])
			if c < 0 {
				return nil, ErrUnsorted
			}
			if c == 0 {
				last := len(groups) - 1
				if !slices.ContainsFunc(groups[last], func(v V) bool { return equal(v, values[i]) }) {
					groups[last] = append(groups[last], values[i])
					t.count++
				}
				continue
			}
		}
		uniq = append(uniq, k)
		groups = append(groups, []V{values[i]})
		t.count++
	}
	t.keys = len(uniq)

	// 2. Pack leaves, keeping each below the split threshold.
	perLeaf := max(t.order-1, 1)
	level := make([]*node[V], 0, len(uniq)/perLeaf+1)
	lows := make([]string, 0, cap(level))
	var prev *node[V]
	for start := 0; start < len(uniq); start += perLeaf {
		end := min(start+perLeaf, len(uniq))
		leaf := &node[V]{
			leaf:   true,
			keys:   slices.Clone(uniq[start:end]),
			values: slices.Clone(groups[start:end]),
		}
		if prev != nil {
			prev.next = leaf
		}
		prev = leaf
		level = append(level, leaf)
		lows = append(lows, uniq[start])
	}

	// 3. Build internal levels until a single root remains. Each internal
	// node takes up to order children; the pivots are the lowest keys of
	// every child but the first.
	fanout := max(t.order, 2)
	for len(level) > 1 {
		next := make([]*node[V], 0, len(level)/fanout+1)
		nextLows := make([]string, 0, cap(next))
		for start := 0; start < len(level); start += fanout {
			end := min(start+fanout, len(level))
			parent := &node[V]{
				keys:     slices.Clone(lows[start+1 : end]),
				children: slices.Clone(level[start:end]),
			}
			next = append(next, parent)
			nextLows = append(nextLows, lows[start])
		}
		level, lows = next, nextLows
	}

	t.root = level[0]
	return t, nil
}
