package graph

import (
	"log"
	"strings"
)

// GraphOps (§4.8) is the operation layer above Traversal: the seven
// caller-facing mutators the node graph core exports
// (create_path/load_path/remove/remove_recursive/rename/link/
// get_relative_path), each built from Traverse plus the locking and
// driver-dispatch rules in §4.3/§4.7.
//
// Grounded on the teacher's fsops.go handlers (Mkdir/Create/Unlink/
// Rmdir/Rename/Link) and fsconnector.go's Mount/Unmount locking order;
// the two-phase delete and eviction-cache wiring below have no direct
// teacher analogue (nodefs deletes are synchronous, gated entirely by
// kernel lookup counts) and follow §3's lifecycle description instead.
type GraphOps struct {
	root       *Node
	cache      *EvictionCache
	linkDriver ResourceDriver
}

// NewGraphOps builds a GraphOps over root, using cache for deferred
// physical deletion and linkDriver to back the synthetic bodies of
// Link nodes created by Link.
func NewGraphOps(root *Node, cache *EvictionCache, linkDriver ResourceDriver) *GraphOps {
	return &GraphOps{root: root, cache: cache, linkDriver: linkDriver}
}

// Root returns the graph's root node without taking a reference; used
// to seed the first Traverse call of a request.
func (g *GraphOps) Root() *Node { return g.root }

// loadMaterialize is the Materialize callback used by every GraphOps
// entry point (§4.2 "materialization callback"): on a child-miss, ask
// the nearest enclosing mount's driver whether the path exists and, if
// so, synthesize a shadow Node for it. It never creates anything
// physically — that is CreatePath's job.
func (g *GraphOps) loadMaterialize(parent *Node, name, mountRelPath string, _ any) (*Node, Errno) {
	parent.propertyLock.Lock()
	mount := parent.mount
	parent.propertyLock.Unlock()
	if mount == nil {
		return nil, OK
	}

	mount.propertyLock.Lock()
	driver := mount.resource.Driver
	mount.propertyLock.Unlock()
	if driver == nil {
		return nil, OK
	}

	statter, ok := driver.(StatDriver)
	if !ok {
		return nil, OK
	}
	st, found, err := statter.Stat(mountRelPath)
	if err != nil {
		return nil, DriverError
	}
	if !found {
		return nil, OK
	}

	kind := st.Kind
	if kind == KindNull {
		kind = KindFile
	}
	child := newNode(parent, name, kind)
	child.stat = st
	if locator, ok := driver.(Locator); ok {
		if handle, err := locator.Locate(mountRelPath); err == nil {
			child.resource = Resource{Driver: driver, Handle: handle}
		}
	} else if kind.hasResource() {
		child.resource = Resource{Driver: driver}
	}

	// parent.branchLock is already held by the caller (Traverse).
	attachChild(parent, child)
	return child, OK
}

// relativePath builds the path from n up to (but not including) its
// nearest enclosing mount boundary, walking parent pointers. It has no
// leading slash: joined onto a mount's own base it reproduces the
// mount-relative path a driver expects (§4.7, §4.1 "mount-relative
// path").
func relativePath(n *Node) string {
	var parts []string
	cur := n
	for cur != nil {
		cur.propertyLock.Lock()
		atMount := cur.kind == KindMount || cur.kind == KindDevice
		cur.propertyLock.Unlock()
		if atMount {
			break
		}
		cur.branchLock.Lock()
		name := cur.name
		parent := cur.parent
		cur.branchLock.Unlock()
		if name != "" {
			parts = append(parts, name)
		}
		cur = parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// GetRelativePath computes the POSIX-style relative path from from to
// to (§4.8 get_relative_path): find their common leading path
// components, prepend one ".." for each component of from beyond the
// common prefix, then append to's remaining suffix. It is pure path
// string math — neither argument is resolved against the graph, which
// is what lets link() use it to compute a symlink body before the
// link node's own parent-relative identity is fully settled.
func (g *GraphOps) GetRelativePath(from, to string) (string, Errno) {
	if from == "" || to == "" {
		return "", InvalidArgument
	}
	return relativePathBetween(from, to), OK
}

// relativePathBetween implements the GetRelativePath algorithm on
// plain strings.
func relativePathBetween(from, to string) string {
	fromParts := splitPathComponents(from)
	toParts := splitPathComponents(to)

	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}

	parts := make([]string, 0, (len(fromParts)-common)+(len(toParts)-common))
	for i := common; i < len(fromParts); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, toParts[common:]...)

	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

// splitPathComponents splits a /-separated path into its non-empty
// components, the same normalization newLexer applies (leading and
// repeated separators collapse, a path of only separators yields none).
func splitPathComponents(path string) []string {
	var parts []string
	lex := newLexer(path)
	for {
		s, e, _, ok := lex.next()
		if !ok {
			break
		}
		parts = append(parts, path[s:e])
	}
	return parts
}

// dirname returns path with its final component removed, the
// directory Link uses as the "from" side of GetRelativePath — a
// symlink's body is relative to the directory it lives in, not to the
// link's own name.
func dirname(path string) string {
	parts := splitPathComponents(path)
	if len(parts) <= 1 {
		return "/"
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/")
}

// CreatePath walks to path's parent (materializing intermediate
// directories on demand), then creates a new child of kind there
// (§4.8 create_path). Creating a path that already exists with the
// same kind is idempotent: the existing node is returned rather than
// AlreadyExists, so concurrent creators racing on the same path
// converge on one node.
func (g *GraphOps) CreatePath(path string, kind Kind) (*Node, Errno) {
	res, code := Traverse(path, g.root, IgnoreLast, g.loadMaterialize, nil)
	if !code.Ok() {
		return nil, code
	}
	parent := res.Node
	name := strings.TrimPrefix(res.Remainder, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		parent.decRef()
		return nil, InvalidArgument
	}
	if !parent.IsDir() {
		parent.decRef()
		return nil, NotADirectory
	}

	// relativePath takes parent.branchLock itself, so it runs before
	// this function locks parent.
	relPath := relativePath(parent)
	if relPath != "" {
		relPath += "/" + name
	} else {
		relPath = name
	}

	parent.branchLock.Lock()
	if existing := findChild(parent, name); existing != nil {
		parent.branchLock.Unlock()
		if existing.Kind() == kind {
			existing.incRef()
			parent.decRef()
			return existing, OK
		}
		parent.decRef()
		return nil, AlreadyExists
	}

	parent.propertyLock.Lock()
	mount := parent.mount
	parent.propertyLock.Unlock()

	var driver ResourceDriver
	if mount != nil {
		mount.propertyLock.Lock()
		driver = mount.resource.Driver
		mount.propertyLock.Unlock()
		if creator, ok := driver.(Creator); ok {
			if err := creator.Create(relPath, 0, kind); err != nil {
				parent.branchLock.Unlock()
				parent.decRef()
				log.Printf("graph: %v", wrapDriverErr("create "+relPath, err))
				return nil, DriverError
			}
		}
	}

	child := newNode(parent, name, kind)
	child.stat.Kind = kind
	if driver != nil {
		if locator, ok := driver.(Locator); ok {
			if handle, err := locator.Locate(relPath); err == nil {
				child.resource = Resource{Driver: driver, Handle: handle}
			}
		} else if kind.hasResource() {
			child.resource = Resource{Driver: driver}
		}
	} else if kind.hasResource() {
		child.resource = Resource{Driver: g.linkDriver, Handle: child}
	}
	attachChild(parent, child)
	child.incRef()
	parent.branchLock.Unlock()

	parent.decRef()
	return child, OK
}

// LoadPath resolves path against the graph, materializing shadow
// nodes for on-disk entries not yet in memory and optionally
// following symlinks (§4.8 load_path). The returned node carries a
// reference the caller must release via Release.
func (g *GraphOps) LoadPath(path string, flags Flag) (*Node, Errno) {
	res, code := Traverse(path, g.root, flags, g.loadMaterialize, nil)
	if !code.Ok() {
		return nil, code
	}
	return res.Node, OK
}

// Release drops the reference a LoadPath/CreatePath/Link caller holds
// on node. Every node's ref_count dropping to zero — whether from an
// ordinary close or from Remove/RemoveRecursive pruning it first — is
// pushed into the eviction cache (§4.5: "On close/remove, if the
// node's ref_count drops to zero, it is inserted..."); whatever that
// push bumps out of the ring is finalized now: physically deleted if
// it was pending deletion, otherwise just forgotten from the in-memory
// tree so a later load_path re-triggers materialization (§8 Scenario
// 5). Mount/Device/Root nodes are never evicted (§9 Open Question 3):
// their ref_count can't reach zero while they hold their own eternal
// pin anyway, but the check guards the invariant explicitly rather
// than relying on that incidentally.
func (g *GraphOps) Release(node *Node) {
	if node == nil {
		return
	}
	if node.decRef() != 0 {
		return
	}
	if node.kind == KindMount || node.kind == KindDevice || node.kind == KindRoot {
		return
	}
	if g.cache == nil {
		g.finalizeZeroRef(node)
		return
	}
	if evicted := g.cache.Insert(node); evicted != nil {
		g.finalizeZeroRef(evicted)
	}
}

// finalizeZeroRef handles a node the eviction cache has let go of: a
// pending-delete node is physically deleted now, an ordinary node is
// just detached from its parent's in-memory child list (its backing
// data, if any, is untouched — only the shadow Node is reclaimed).
func (g *GraphOps) finalizeZeroRef(node *Node) {
	node.propertyLock.Lock()
	pending := node.pendingDelete
	driver, path := node.pendingDriver, node.pendingPath
	node.propertyLock.Unlock()

	if pending {
		g.physicalDelete(node, driver, path)
		return
	}
	g.forgetInMemory(node)
}

// forgetInMemory detaches node from its parent's sibling list without
// touching any driver, reclaiming the in-memory shadow of a node
// nobody references anymore while leaving its backing data (if any)
// alone (§4.5 Scenario 5: eviction, not deletion).
func (g *GraphOps) forgetInMemory(node *Node) {
	node.branchLock.Lock()
	parent := node.parent
	node.branchLock.Unlock()
	if parent == nil {
		return
	}
	parent.branchLock.Lock()
	if findChild(parent, node.name) == node {
		detachChild(node)
	}
	parent.branchLock.Unlock()
}

// finishDelete is the tail of Remove/RemoveRecursive/pruneUpward once
// a node has been structurally pruned from the tree: delete it now if
// nothing else holds a reference, otherwise arm it for Release to
// finish and report InUse (§7: a reference is still outstanding).
func (g *GraphOps) finishDelete(node *Node, driver ResourceDriver, relPath string) Errno {
	if node.RefCount() == 0 {
		return g.physicalDelete(node, driver, relPath)
	}
	node.propertyLock.Lock()
	node.pendingDelete = true
	node.pendingDriver = driver
	node.pendingPath = relPath
	node.propertyLock.Unlock()
	return InUse
}

func (g *GraphOps) physicalDelete(node *Node, driver ResourceDriver, relPath string) Errno {
	if remover, ok := driver.(Remover); ok {
		if err := remover.Remove(relPath); err != nil {
			log.Printf("graph: %v", wrapDriverErr("remove "+relPath, err))
			return DriverError
		}
	}
	if g.cache != nil {
		g.cache.Remove(node)
	}
	return OK
}

// Remove detaches the node named by path's final component from its
// parent (§4.8 remove). A non-empty directory is rejected with
// HasChildren; use RemoveRecursive for that. The name becomes
// invisible to lookups immediately even if the node is still
// referenced elsewhere and its physical deletion is deferred (InUse).
// Removing a node with no mount ancestor requires the Physical flag
// (§7); PruneUpward additionally deletes ancestor directories left
// empty by this removal. Removing the graph root itself — the only
// path with no final component to detach — always fails with InUse,
// since the root's own ref_count is eternally pinned (§3 Lifecycle)
// and can never legitimately reach zero.
func (g *GraphOps) Remove(path string, flags RemoveFlag) Errno {
	res, code := Traverse(path, g.root, IgnoreLast, g.loadMaterialize, nil)
	if !code.Ok() {
		return code
	}
	parent := res.Node
	name := strings.TrimPrefix(res.Remainder, "/")
	if name == "" {
		parent.decRef()
		return InUse
	}

	parent.branchLock.Lock()
	child := findChild(parent, name)
	if child == nil {
		parent.branchLock.Unlock()
		parent.decRef()
		return NotFound
	}
	child.branchLock.Lock()
	hasChildren := child.children != nil
	child.branchLock.Unlock()
	if hasChildren {
		parent.branchLock.Unlock()
		parent.decRef()
		return HasChildren
	}

	child.propertyLock.Lock()
	mount := child.mount
	driver := child.resource.Driver
	child.propertyLock.Unlock()
	if mount == nil && flags&Physical == 0 {
		parent.branchLock.Unlock()
		parent.decRef()
		return PhysicalDeleteRequired
	}

	detachChild(child)
	parent.branchLock.Unlock()
	// detachChild leaves child.parent set, so the path still resolves;
	// relativePath locks each ancestor, parent included.
	relPath := relativePath(child)

	code = g.finishDelete(child, driver, relPath)
	if flags&PruneUpward != 0 {
		g.pruneUpward(parent)
	} else {
		parent.decRef()
	}
	return code
}

// RemoveRecursive detaches the node named by path's final component
// and, if it is a directory, everything beneath it (§4.8
// remove_recursive), applying the same deferred-deletion rule as
// Remove to every node in the subtree independently. It returns the
// number of subtrees that could not be deleted immediately because
// they are still in use (§4.8: "the number of subtrees that could not
// be deleted (in-use)"), not merely a success/failure code.
func (g *GraphOps) RemoveRecursive(path string, flags RemoveFlag) (int, Errno) {
	res, code := Traverse(path, g.root, IgnoreLast, g.loadMaterialize, nil)
	if !code.Ok() {
		return 0, code
	}
	parent := res.Node
	name := strings.TrimPrefix(res.Remainder, "/")
	if name == "" {
		parent.decRef()
		return 0, InUse
	}

	parent.branchLock.Lock()
	child := findChild(parent, name)
	if child == nil {
		parent.branchLock.Unlock()
		parent.decRef()
		return 0, NotFound
	}
	child.propertyLock.Lock()
	mount := child.mount
	child.propertyLock.Unlock()
	if mount == nil && flags&Physical == 0 {
		parent.branchLock.Unlock()
		parent.decRef()
		return 0, PhysicalDeleteRequired
	}
	detachChild(child)
	parent.branchLock.Unlock()

	inUse := g.removeSubtree(child)
	if flags&PruneUpward != 0 {
		g.pruneUpward(parent)
	} else {
		parent.decRef()
	}
	return inUse, OK
}

// removeSubtree recursively finishes deleting node and everything
// beneath it, bottom-up, and returns how many of those nodes are still
// in use (finishDelete returned InUse) rather than deleted outright.
func (g *GraphOps) removeSubtree(node *Node) int {
	node.branchLock.Lock()
	var children []*Node
	for c := node.children; c != nil; c = c.next {
		children = append(children, c)
	}
	node.children = nil
	node.branchLock.Unlock()

	inUse := 0
	for _, c := range children {
		inUse += g.removeSubtree(c)
	}

	relPath := relativePath(node)
	node.propertyLock.Lock()
	driver := node.resource.Driver
	node.propertyLock.Unlock()
	if g.finishDelete(node, driver, relPath) == InUse {
		inUse++
	}
	node.parent = nil
	return inUse
}

// pruneUpward implements the PruneUpward remove flag: starting from
// node — which must carry exactly one reference, handed to this
// function to consume — it deletes node if node is now a childless
// non-root, non-mount directory, then repeats for node's own parent,
// stopping at the first ancestor that still has other children or
// that is itself a root/mount boundary (§4.8 remove flags).
func (g *GraphOps) pruneUpward(node *Node) {
	for node != nil {
		if node.kind == KindRoot || node.kind == KindMount || node.kind == KindDevice {
			node.decRef()
			return
		}

		node.branchLock.Lock()
		empty := node.children == nil
		parent := node.parent
		name := node.name
		node.branchLock.Unlock()
		if !empty || parent == nil {
			node.decRef()
			return
		}

		parent.branchLock.Lock()
		if findChild(parent, name) != node {
			parent.branchLock.Unlock()
			node.decRef()
			return
		}
		parent.incRef()
		node.propertyLock.Lock()
		driver := node.resource.Driver
		node.propertyLock.Unlock()
		detachChild(node)
		parent.branchLock.Unlock()
		relPath := relativePath(node)

		// Drop the one reference this call was handed before checking
		// whether anyone else still holds node, so an uncontended
		// ancestor is physically deleted immediately instead of
		// waiting on a Release that nothing will ever call.
		node.decRef()
		g.finishDelete(node, driver, relPath)

		node = parent
	}
}

// Rename moves the node named by fromPath's final component to
// toPath, preserving its identity (§4.8 rename: "the moved node keeps
// its reference count and any outstanding references"). Renaming
// across two directories backed by different mounts fails with
// CrossMountUnsupported (§9 Design Notes) rather than falling back to
// a copy-and-delete, since that would silently change the node's
// identity out from under callers still holding a reference to it.
func (g *GraphOps) Rename(fromPath, toPath string) Errno {
	fromRes, code := Traverse(fromPath, g.root, IgnoreLast, g.loadMaterialize, nil)
	if !code.Ok() {
		return code
	}
	fromParent := fromRes.Node
	fromName := strings.TrimPrefix(fromRes.Remainder, "/")

	toRes, code := Traverse(toPath, g.root, IgnoreLast, g.loadMaterialize, nil)
	if !code.Ok() {
		fromParent.decRef()
		return code
	}
	toParent := toRes.Node
	toName := strings.TrimPrefix(toRes.Remainder, "/")

	// relativePath locks each ancestor's branchLock, so both driver
	// paths are built before the two parents are locked.
	fromRel, toRel := relativePath(fromParent), relativePath(toParent)
	if fromRel != "" {
		fromRel += "/"
	}
	if toRel != "" {
		toRel += "/"
	}
	fromRel += fromName
	toRel += toName

	unlock := lockBranchPair(fromParent, toParent)
	defer unlock()
	defer fromParent.decRef()
	defer toParent.decRef()

	child := findChild(fromParent, fromName)
	if child == nil {
		return NotFound
	}
	if findChild(toParent, toName) != nil {
		return AlreadyExists
	}

	fromParent.propertyLock.Lock()
	fromMount := fromParent.mount
	fromParent.propertyLock.Unlock()
	toParent.propertyLock.Lock()
	toMount := toParent.mount
	toParent.propertyLock.Unlock()

	if fromMount != toMount {
		return CrossMountUnsupported
	}

	detachChild(child)
	child.branchLock.Lock()
	child.name = toName
	child.branchLock.Unlock()
	attachChild(toParent, child)

	if fromMount != nil {
		fromMount.propertyLock.Lock()
		driver := fromMount.resource.Driver
		fromMount.propertyLock.Unlock()
		if renamer, ok := driver.(Renamer); ok {
			if err := renamer.Rename(fromRel, toRel); err != nil {
				log.Printf("graph: %v", wrapDriverErr("rename "+fromRel+" -> "+toRel, err))
				return DriverError
			}
		}
	}

	return OK
}

// Link creates a Link node at linkPath whose body is targetPath
// rendered as a path relative to linkPath's directory (§4.8 link,
// §4.6, §8 Scenario 3), and increments targetPath's resolved node's
// reference count exactly once for the link edge (§3 invariant 6: "a
// Link node with a non-absent link_target has incremented the
// target's ref_count exactly once"). The body is stored through
// linkDriver exactly like any other resource-backed read/write, so
// Traverse's symlink step (readLinkBody) needs no special case for
// where a link's content lives.
func (g *GraphOps) Link(linkPath, targetPath string) (*Node, Errno) {
	targetRes, code := Traverse(targetPath, g.root, 0, g.loadMaterialize, nil)
	if !code.Ok() {
		return nil, code
	}
	target := targetRes.Node

	res, code := Traverse(linkPath, g.root, IgnoreLast, g.loadMaterialize, nil)
	if !code.Ok() {
		target.decRef()
		return nil, code
	}
	parent := res.Node
	name := strings.TrimPrefix(res.Remainder, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		parent.decRef()
		target.decRef()
		return nil, InvalidArgument
	}

	parent.branchLock.Lock()
	if findChild(parent, name) != nil {
		parent.branchLock.Unlock()
		parent.decRef()
		target.decRef()
		return nil, AlreadyExists
	}
	child := newNode(parent, name, KindLink)
	child.resource = Resource{Driver: g.linkDriver, Handle: child}
	// The Traverse call above already incremented target's ref_count;
	// that is the one reference invariant 6 requires for this edge, so
	// child.linkTarget takes ownership of it rather than releasing it.
	child.linkTarget = target
	attachChild(parent, child)
	child.incRef()
	parent.branchLock.Unlock()
	parent.decRef()

	body := relativePathBetween(dirname(linkPath), targetPath)
	if err := writeAll(child, []byte(body)); err != nil {
		return child, DriverError
	}
	return child, OK
}
