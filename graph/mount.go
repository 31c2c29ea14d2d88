package graph

// MountTable (§4.7): mounting associates a node with a driver
// Resource and routes path-relative-to-mount requests to that
// driver. There is no separate table data structure — the "table" is
// the mount pointer cached on every node (§9 Design Notes: "mount
// pointer on every node is a cached ancestor lookup... caching is an
// optimization"), exactly as the teacher caches fileSystemMount on
// every Inode rather than keeping a side index.

// Mount flips an existing, childless directory node into a mount
// point backed by driver, pinning its reference count so it cannot be
// evicted (§4.7). group selects whether the node becomes KindMount or
// KindDevice.
func Mount(node *Node, driver ResourceDriver, group DriverGroup) Errno {
	node.branchLock.Lock()
	hasChildren := node.children != nil
	node.branchLock.Unlock()

	node.propertyLock.Lock()
	defer node.propertyLock.Unlock()

	if node.kind != KindDir && node.kind != KindRoot {
		return NotADirectory
	}
	if hasChildren {
		return HasChildren
	}

	kind := KindMount
	if group == DeviceGroup {
		kind = KindDevice
	}
	node.kind = kind
	node.resource = Resource{Driver: driver}
	node.mount = node
	node.incRef() // eternal pin, released on Unmount

	return OK
}

// Unmount releases a mount's pin, closes the driver if it implements
// Closer, recursively deletes in-memory descendants, and restores the
// node to a plain Dir (§4.7). It fails with InUse if anything besides
// the mount's own pin still references the node.
func Unmount(node *Node) Errno {
	node.propertyLock.Lock()
	if node.mount != node {
		node.propertyLock.Unlock()
		return InvalidArgument
	}
	if node.RefCount() > 1 {
		node.propertyLock.Unlock()
		return InUse
	}

	driver := node.resource.Driver
	if closer, ok := driver.(Closer); ok {
		closer.Close()
	}

	node.kind = KindDir
	node.resource = Resource{}
	if node.parent != nil {
		node.mount = node.parent.mount
	} else {
		node.mount = nil
	}
	node.propertyLock.Unlock()

	node.decRef() // release the pin taken by Mount

	clearDescendantsInMemory(node)
	return OK
}

// clearDescendantsInMemory detaches and drops every descendant of
// node from the tree without touching any driver (used at unmount
// time: the backing store is gone, only the in-memory shadow needs
// clearing; node itself stays in the tree as a plain Dir).
func clearDescendantsInMemory(node *Node) {
	node.branchLock.Lock()
	children := make([]*Node, 0)
	for c := node.children; c != nil; c = c.next {
		children = append(children, c)
	}
	node.children = nil
	node.branchLock.Unlock()

	for _, c := range children {
		removeSubtreeInMemory(c)
	}
}

// removeSubtreeInMemory recursively clears a detached subtree.
func removeSubtreeInMemory(node *Node) {
	node.branchLock.Lock()
	children := make([]*Node, 0)
	for c := node.children; c != nil; c = c.next {
		children = append(children, c)
	}
	node.branchLock.Unlock()

	for _, c := range children {
		removeSubtreeInMemory(c)
	}
	node.parent = nil
}
