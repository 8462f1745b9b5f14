package mxcache

import "container/list"

// lru is a fixed-capacity least-recently-used map. It is not safe for
// concurrent use; Cache guards it with its mutex.
type lru[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most recently used
}

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](capacity int) *lru[K, V] {
	if capacity <= 0 {
		panic("invalid cache size")
	}
	return &lru[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the value for k and marks it most recently used.
func (c *lru[K, V]) Get(k K) (V, bool) {
	el, ok := c.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).value, true
}

// Add stores v under k and reports the key evicted to make room, if any.
func (c *lru[K, V]) Add(k K, v V) (evicted K, ok bool) {
	if el, found := c.items[k]; found {
		el.Value.(*lruItem[K, V]).value = v
		c.order.MoveToFront(el)
		return evicted, false
	}

	c.items[k] = c.order.PushFront(&lruItem[K, V]{key: k, value: v})
	if c.order.Len() <= c.capacity {
		return evicted, false
	}

	oldest := c.order.Back()
	c.order.Remove(oldest)
	item := oldest.Value.(*lruItem[K, V])
	delete(c.items, item.key)
	return item.key, true
}

// Len returns the number of stored entries.
func (c *lru[K, V]) Len() int { return c.order.Len() }
