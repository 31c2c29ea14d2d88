package graph

import (
	"sync"

	"github.com/c-pro/geche"
)

// EvictionCache (§4.5) is a fixed-size ring of recently-closed,
// zero-ref nodes. Inserting into a full slot evicts whatever occupied
// that slot and hands it back to the caller, which physically deletes
// it if it was pending deletion and otherwise only drops it from the
// in-memory tree.
//
// This is a direct reuse of github.com/c-pro/geche's RingBuffer: its
// set() already does exactly what §4.5 specifies (preallocated slots,
// a head cursor advancing mod N, overwrite-oldest, an index map for
// O(1) membership). geche doesn't hand the evicted entry back to the
// caller, though — it just drops it from its internal index — so this
// wrapper keeps a parallel slots slice purely to answer "what did my
// last Insert bump out", which geche's own API has no way to expose.
type EvictionCache struct {
	mu    sync.Mutex
	ring  *geche.RingBuffer[*Node, struct{}]
	slots []*Node
	head  int
}

// NewEvictionCache creates a cache with the given fixed capacity.
func NewEvictionCache(size int) *EvictionCache {
	if size <= 0 {
		size = EvictionCacheSize
	}
	return &EvictionCache{
		ring:  geche.NewRingBuffer[*Node, struct{}](size),
		slots: make([]*Node, size),
	}
}

// Insert adds n to the cache. If the slot n lands in already held a
// node, that node is returned so the caller can finalize it
// (§4.5: "the entry previously at that slot, if any, is freed").
func (c *EvictionCache) Insert(n *Node) (evicted *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted = c.slots[c.head]
	if evicted != nil {
		c.ring.Del(evicted)
	}
	c.slots[c.head] = n
	c.ring.Set(n, struct{}{})
	c.head = (c.head + 1) % len(c.slots)
	return evicted
}

// Remove drops n from the cache ahead of its natural eviction. GraphOps
// calls it when it physically deletes a node that may still sit in the
// ring.
func (c *EvictionCache) Remove(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.ring.Get(n); err != nil {
		return
	}
	c.ring.Del(n)
	for i, s := range c.slots {
		if s == n {
			c.slots[i] = nil
		}
	}
}

// Contains reports whether n currently sits in the cache.
func (c *EvictionCache) Contains(n *Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.ring.Get(n)
	return err == nil
}

// Len returns the number of occupied slots.
func (c *EvictionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ring.Len()
}
