package graph

import (
	"log"
	"sync"
	"sync/atomic"
)

// Paranoia toggles expensive invariant checks (§3 Invariants). It is
// off by default and no test in this package turns it on; it mirrors
// the teacher's package-level `paranoia` switch in fuse/nodefs.
var Paranoia = false

// Node is the unit of the graph (§3). It is shared, mutable state
// protected by two locks: branchLock guards the tree shape
// (children/parent/prev/next/name), propertyLock guards kind/mount/
// stat/resource/linkTarget. Both are held at most as long as the
// critical section that needs them — Traversal releases branchLock
// before descending into a child (§4.3 point 1).
type Node struct {
	branchLock   sync.Mutex
	propertyLock sync.Mutex

	kind Kind
	name string

	parent           *Node
	children         *Node // head of the doubly linked sibling list
	prev, next       *Node // sibling links inside parent.children

	linkTarget *Node
	mount      *Node // nearest ancestor (inclusive) of kind Mount/Device, or nil
	resource   Resource
	stat       Stat

	refCount int64

	// Two-phase deletion bookkeeping (§3 Lifecycle, §4.5): set by
	// remove/remove_recursive when a node is structurally pruned while
	// still referenced. The physical delete these fields describe runs
	// once the last reference is released (GraphOps.Release) and the
	// eviction cache then pushes the node out of its ring.
	pendingDelete bool
	pendingDriver ResourceDriver
	pendingPath   string
}

// NewRoot constructs the immortal root node a GraphOps is built over.
// Exported for callers assembling a graph from scratch (the facade's
// constructors, tests, example drivers).
func NewRoot() *Node { return newRootNode() }

// newRootNode constructs the immortal root of the graph (§3
// Lifecycle: "constructed at init, never deleted, ref_count pinned at
// 1").
func newRootNode() *Node {
	n := &Node{kind: KindRoot}
	n.mount = nil
	n.refCount = 1
	return n
}

// newNode allocates a node record (§4.2 NodeStore.new_node). It does
// not attach the node to any parent or manage reference counts; the
// caller does that via attachChild/incRef.
func newNode(parent *Node, name string, kind Kind) *Node {
	n := &Node{
		kind: kind,
		name: name,
	}
	if parent != nil {
		if parent.kind == KindMount || parent.kind == KindDevice {
			n.mount = parent
		} else {
			n.mount = parent.mount
		}
	}
	return n
}

// IsDir reports whether n may hold children. Mount/Device/Root are
// directory-shaped for traversal purposes.
func (n *Node) IsDir() bool {
	switch n.kind {
	case KindDir, KindMount, KindRoot, KindDevice:
		return true
	default:
		return false
	}
}

// Kind returns the node's kind.
func (n *Node) Kind() Kind {
	n.propertyLock.Lock()
	defer n.propertyLock.Unlock()
	return n.kind
}

// Name returns the node's owned name (empty for root).
func (n *Node) Name() string {
	n.branchLock.Lock()
	defer n.branchLock.Unlock()
	return n.name
}

// Parent returns the node's parent, or nil for root.
func (n *Node) Parent() *Node {
	n.branchLock.Lock()
	defer n.branchLock.Unlock()
	return n.parent
}

// Stat returns a copy of the node's cached attributes.
func (n *Node) Stat() Stat {
	n.propertyLock.Lock()
	defer n.propertyLock.Unlock()
	return n.stat
}

// SetStat overwrites the node's cached attributes.
func (n *Node) SetStat(s Stat) {
	n.propertyLock.Lock()
	n.stat = s
	n.propertyLock.Unlock()
}

// Mount returns the nearest ancestor (inclusive) of kind Mount/Device,
// or nil if this subtree has no backing mount (§3 invariant 3).
func (n *Node) Mount() *Node {
	n.propertyLock.Lock()
	defer n.propertyLock.Unlock()
	return n.mount
}

// Children returns a snapshot slice of the node's current children.
// Ordering is unspecified (§3: "ordering immaterial except for
// traversal stability").
func (n *Node) Children() []*Node {
	n.branchLock.Lock()
	defer n.branchLock.Unlock()
	var out []*Node
	for c := n.children; c != nil; c = c.next {
		out = append(out, c)
	}
	return out
}

// findChild scans the sibling list for a child named name. Caller
// must hold n.branchLock (§4.2).
func findChild(n *Node, name string) *Node {
	for c := n.children; c != nil; c = c.next {
		if len(c.name) == len(name) && c.name == name {
			return c
		}
	}
	return nil
}

// attachChild prepends child at the head of parent's sibling list and
// sets child.parent (§4.2 attach_child). Caller must hold
// parent.branchLock.
func attachChild(parent, child *Node) {
	if child == nil {
		log.Panicf("attaching nil child to %q", parent.name)
	}
	if Paranoia {
		if existing := findChild(parent, child.name); existing != nil {
			log.Panicf("paranoia: duplicate child name %q under %q", child.name, parent.name)
		}
	}
	child.parent = parent
	child.prev = nil
	child.next = parent.children
	if parent.children != nil {
		parent.children.prev = child
	}
	parent.children = child
}

// detachChild removes child from its parent's sibling list (§4.2
// detach_child). Caller must hold child.parent.branchLock.
func detachChild(child *Node) {
	if child.prev != nil {
		child.prev.next = child.next
	} else if child.parent != nil {
		child.parent.children = child.next
	}
	if child.next != nil {
		child.next.prev = child.prev
	}
	child.prev = nil
	child.next = nil
}

// verify walks the subtree rooted at n checking invariants 1-2 (§3).
// Only runs under Paranoia, the way the teacher's Inode.verify only
// runs when its package-level paranoia switch is set.
func (n *Node) verify() {
	if !Paranoia {
		return
	}
	n.branchLock.Lock()
	defer n.branchLock.Unlock()
	for c := n.children; c != nil; c = c.next {
		if c.parent != n {
			log.Panicf("child %q has parent %v, want %v", c.name, c.parent, n)
		}
		c.verify()
	}
}

// RefCounter (§4.4): atomic, non-negative, acquire/release semantics.

// incRef increments the node's reference count and returns the new value.
func (n *Node) incRef() int64 {
	return atomic.AddInt64(&n.refCount, 1)
}

// decRef decrements the node's reference count and returns the new
// value. A drop below zero indicates a caller released a reference it
// never held — an invariant violation, not a recoverable error.
func (n *Node) decRef() int64 {
	v := atomic.AddInt64(&n.refCount, -1)
	if v < 0 {
		log.Panicf("refcount underflow on node %q", n.name)
	}
	return v
}

// RefCount returns the current reference count.
func (n *Node) RefCount() int64 {
	return atomic.LoadInt64(&n.refCount)
}
