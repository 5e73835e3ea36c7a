package bisect

import "container/list"

// DefaultCacheSize is the number of probed offsets remembered per file.
const DefaultCacheSize = 16

// probe is the result of resolving a byte offset to the line that starts at
// or after it.
type probe struct {
	start int64 // offset of the line start
	next  int64 // offset just past the line's newline
	key   string
	eof   bool // no line starts at or after the offset
}

type lruEntry struct {
	offset int64
	value  probe
}

// lruCache is a fixed-size offset -> probe cache. It is not synchronized;
// File holds its mutex while using it.
type lruCache struct {
	capacity int
	items    map[int64]*list.Element
	order    *list.List // front = most recent
}

func newLRUCache(capacity int) *lruCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &lruCache{
		capacity: capacity,
		items:    make(map[int64]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *lruCache) get(offset int64) (probe, bool) {
	elem, ok := c.items[offset]
	if !ok {
		return probe{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry).value, true
}

func (c *lruCache) set(offset int64, p probe) {
	if elem, ok := c.items[offset]; ok {
		elem.Value.(*lruEntry).value = p
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).offset)
	}
	c.items[offset] = c.order.PushFront(&lruEntry{offset: offset, value: p})
}

func (c *lruCache) len() int {
	return c.order.Len()
}
