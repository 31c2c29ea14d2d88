package graph

import "unsafe"

// LockManager (§4.3) is not a standalone type — Node carries its own
// branchLock/propertyLock, and the ordering rules are enforced by the
// call sites in Traversal and GraphOps. This file holds the one piece
// of shared machinery: the total order over node addresses used to
// acquire two nodes' branch locks without risking deadlock during
// rename (§4.3 point 2, §4.3 "Deadlock freedom").
//
// The teacher sidesteps this entirely by locking the whole mount's
// tree with a single RWMutex (fuse/nodefs's treeLock); per-node locks
// are this spec's explicit departure (§9 Design Notes), so the
// ordered dual-acquire here has no direct teacher analogue and is
// built straight from §4.3's prose.

// lockBranchPair locks the branchLock of both a and b in address
// order (or once, if they are the same node) and returns a function
// that unlocks both.
func lockBranchPair(a, b *Node) func() {
	if a == b {
		a.branchLock.Lock()
		return func() { a.branchLock.Unlock() }
	}

	if addrLess(a, b) {
		a.branchLock.Lock()
		b.branchLock.Lock()
	} else {
		b.branchLock.Lock()
		a.branchLock.Lock()
	}
	return func() {
		a.branchLock.Unlock()
		b.branchLock.Unlock()
	}
}

func addrLess(a, b *Node) bool {
	return uintptr(unsafe.Pointer(a)) < uintptr(unsafe.Pointer(b))
}
