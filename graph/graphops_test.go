package graph

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func newTestGraphOps(t *testing.T) (*GraphOps, *Node, *memMountDriver) {
	t.Helper()
	root := newRootNode()
	ops := NewGraphOps(root, NewEvictionCache(8), NewBufferDriver())

	mountNode, code := ops.CreatePath("/disk", KindDir)
	if !code.Ok() {
		t.Fatalf("create mount point: %v", code)
	}
	driver := newMemMountDriver()
	if code := Mount(mountNode, driver, FilesystemGroup); !code.Ok() {
		t.Fatalf("mount: %v", code)
	}
	ops.Release(mountNode)
	verboseLog(t, "mounted memMountDriver at /disk for %s", t.Name())
	return ops, root, driver
}

func TestCreateLoadPathRoundTrip(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)

	dir, code := ops.CreatePath("/disk/sub", KindDir)
	if !code.Ok() {
		t.Fatalf("create dir: %v", code)
	}
	ops.Release(dir)

	file, code := ops.CreatePath("/disk/sub/f.txt", KindFile)
	if !code.Ok() {
		t.Fatalf("create file: %v", code)
	}
	ops.Release(file)

	if _, ok := driver.entries["sub"]; !ok {
		t.Fatalf("driver should have received physical create for sub")
	}
	if _, ok := driver.entries["sub/f.txt"]; !ok {
		t.Fatalf("driver should have received physical create for sub/f.txt")
	}

	loaded, code := ops.LoadPath("/disk/sub/f.txt", 0)
	if !code.Ok() {
		t.Fatalf("load: %v", code)
	}
	if loaded.Kind() != KindFile {
		t.Fatalf("got kind %v, want File", loaded.Kind())
	}
	ops.Release(loaded)
}

func TestLoadPathMaterializesFromDriver(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	// Seed the backing store directly, bypassing create_path, the way
	// a file dropped on disk by something outside this process would
	// appear only once something calls load_path on it.
	driver.entries["external.txt"] = &memEntry{}

	node, code := ops.LoadPath("/disk/external.txt", 0)
	if !code.Ok() {
		t.Fatalf("load: %v", code)
	}
	if node.Kind() != KindFile {
		t.Fatalf("got kind %v, want File", node.Kind())
	}
	ops.Release(node)
}

func TestLoadPathNotFound(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)
	_, code := ops.LoadPath("/disk/nope", 0)
	if code != NotFound {
		t.Fatalf("got %v, want NotFound", code)
	}
}

func TestCreatePathIdempotent(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)

	first, code := ops.CreatePath("/disk/sub", KindDir)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}

	second, code := ops.CreatePath("/disk/sub", KindDir)
	if !code.Ok() {
		t.Fatalf("idempotent create: %v", code)
	}
	if second != first {
		t.Fatalf("idempotent create should return the same node")
	}
	if first.RefCount() != 2 {
		t.Fatalf("got refcount %d, want 2 (two successful creators)", first.RefCount())
	}
	ops.Release(first)
	ops.Release(second)
}

func TestCreatePathConflictingKind(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)
	dir, code := ops.CreatePath("/disk/x", KindDir)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	ops.Release(dir)

	_, code = ops.CreatePath("/disk/x", KindFile)
	if code != AlreadyExists {
		t.Fatalf("got %v, want AlreadyExists", code)
	}
}

func TestCreatePathConcurrentIsIdempotent(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)

	var g errgroup.Group
	nodes := make([]*Node, 16)
	for i := range nodes {
		i := i
		g.Go(func() error {
			n, code := ops.CreatePath("/disk/shared", KindDir)
			if !code.Ok() {
				return code
			}
			nodes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent create failed: %v", err)
	}
	for i := 1; i < len(nodes); i++ {
		if nodes[i] != nodes[0] {
			t.Fatalf("concurrent creates of the same path should converge on one node")
		}
	}
	for _, n := range nodes {
		ops.Release(n)
	}
	if nodes[0].RefCount() != 0 {
		t.Fatalf("got refcount %d after all releases, want 0", nodes[0].RefCount())
	}
}

func TestRemoveRejectsNonEmptyDir(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)
	dir, _ := ops.CreatePath("/disk/sub", KindDir)
	ops.Release(dir)
	file, _ := ops.CreatePath("/disk/sub/f", KindFile)
	ops.Release(file)

	if code := ops.Remove("/disk/sub", 0); code != HasChildren {
		t.Fatalf("got %v, want HasChildren", code)
	}
}

func TestRemoveDeletesImmediatelyWhenUnreferenced(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	file, _ := ops.CreatePath("/disk/f", KindFile)
	ops.Release(file)

	if code := ops.Remove("/disk/f", 0); !code.Ok() {
		t.Fatalf("remove: %v", code)
	}
	if _, ok := driver.entries["f"]; ok {
		t.Fatalf("driver entry should be gone after remove with no outstanding refs")
	}
	if _, code := ops.LoadPath("/disk/f", 0); code != NotFound {
		t.Fatalf("got %v, want NotFound after remove", code)
	}
}

func TestRemoveDefersPhysicalDeleteWhileReferenced(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	file, code := ops.CreatePath("/disk/f", KindFile)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	// file carries the caller's one reference; Remove must not
	// physically delete it yet.

	removeCode := ops.Remove("/disk/f", 0)
	if removeCode != InUse {
		t.Fatalf("got %v, want InUse", removeCode)
	}
	if _, ok := driver.entries["f"]; !ok {
		t.Fatalf("driver entry should survive while a reference is outstanding")
	}
	if _, code := ops.LoadPath("/disk/f", 0); code != NotFound {
		t.Fatalf("removed name should be invisible to lookups even while pending, got %v", code)
	}

	// Releasing the last reference only arms the entry in the
	// eviction cache (§4.5) — it doesn't force an immediate physical
	// delete, so the driver entry is still there right after Release.
	ops.Release(file)
	if _, ok := driver.entries["f"]; !ok {
		t.Fatalf("driver entry should still be held by the eviction cache right after release")
	}

	// Pushing one more zero-ref pending-delete node through a
	// single-slot cache forces the ring to evict (and physically
	// delete) the first one.
	root := newRootNode()
	tinyOps := NewGraphOps(root, NewEvictionCache(1), NewBufferDriver())
	mnt, _ := tinyOps.CreatePath("/disk", KindDir)
	tinyDriver := newMemMountDriver()
	Mount(mnt, tinyDriver, FilesystemGroup)
	tinyOps.Release(mnt)

	first, _ := tinyOps.CreatePath("/disk/first", KindFile)
	tinyOps.Remove("/disk/first", 0)
	tinyOps.Release(first) // inserted into the size-1 ring, not yet evicted

	second, _ := tinyOps.CreatePath("/disk/second", KindFile)
	tinyOps.Remove("/disk/second", 0)
	tinyOps.Release(second) // evicts first out of the ring

	if _, ok := tinyDriver.entries["first"]; ok {
		t.Fatalf("first should be physically deleted once evicted from the ring")
	}
}

func TestReleaseWithoutRemoveEvictsOldestOnCacheOverflow(t *testing.T) {
	// §8 Scenario 5: open and close three files against a size-2
	// eviction cache, none of them ever removed. The oldest closed file
	// should be forgotten from memory once the third push overflows the
	// ring, and loading it again should re-trigger materialization from
	// the driver rather than finding a stale in-memory shadow.
	root := newRootNode()
	ops := NewGraphOps(root, NewEvictionCache(2), NewBufferDriver())
	mnt, _ := ops.CreatePath("/disk", KindDir)
	driver := newMemMountDriver()
	Mount(mnt, driver, FilesystemGroup)
	ops.Release(mnt)

	first, code := ops.CreatePath("/disk/first", KindFile)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	ops.Release(first)
	second, _ := ops.CreatePath("/disk/second", KindFile)
	ops.Release(second)
	third, _ := ops.CreatePath("/disk/third", KindFile)
	ops.Release(third) // overflows the size-2 ring, evicting first

	for _, p := range []string{"first", "second", "third"} {
		if _, ok := driver.entries[p]; !ok {
			t.Fatalf("entry %q should still exist on the driver, only closed, never removed", p)
		}
	}

	reloaded, code := ops.LoadPath("/disk/first", 0)
	if !code.Ok() {
		t.Fatalf("reload after eviction: %v", code)
	}
	if reloaded == first {
		t.Fatalf("evicted node should be rematerialized as a fresh shadow, not the old pointer")
	}
	ops.Release(reloaded)
}

func TestRemoveRecursive(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	dir, _ := ops.CreatePath("/disk/sub", KindDir)
	ops.Release(dir)
	f1, _ := ops.CreatePath("/disk/sub/a", KindFile)
	ops.Release(f1)
	f2, _ := ops.CreatePath("/disk/sub/b", KindFile)
	ops.Release(f2)

	inUse, code := ops.RemoveRecursive("/disk/sub", 0)
	if !code.Ok() {
		t.Fatalf("remove_recursive: %v", code)
	}
	if inUse != 0 {
		t.Fatalf("got %d in-use subtrees, want 0 (nothing referenced)", inUse)
	}
	for _, p := range []string{"sub", "sub/a", "sub/b"} {
		if _, ok := driver.entries[p]; ok {
			t.Fatalf("entry %q should be gone after remove_recursive", p)
		}
	}
}

func TestRemoveRecursiveCountsInUseSubtrees(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	dir, _ := ops.CreatePath("/disk/sub", KindDir)
	ops.Release(dir)
	f1, code := ops.CreatePath("/disk/sub/a", KindFile)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	// f1 is deliberately held open; its deletion must be deferred.
	f2, _ := ops.CreatePath("/disk/sub/b", KindFile)
	ops.Release(f2)

	inUse, code := ops.RemoveRecursive("/disk/sub", 0)
	if !code.Ok() {
		t.Fatalf("remove_recursive: %v", code)
	}
	if inUse != 1 {
		t.Fatalf("got %d in-use subtrees, want 1 (sub/a still referenced)", inUse)
	}
	if _, ok := driver.entries["sub/a"]; !ok {
		t.Fatalf("sub/a should survive remove_recursive while referenced")
	}
	if _, ok := driver.entries["sub/b"]; ok {
		t.Fatalf("sub/b should be gone, it was never referenced")
	}
	ops.Release(f1)
}

func TestRemoveRootFailsInUse(t *testing.T) {
	ops, root, _ := newTestGraphOps(t)
	if code := ops.Remove("/", 0); code != InUse {
		t.Fatalf("got %v, want InUse", code)
	}
	if _, code := ops.RemoveRecursive("/", 0); code != InUse {
		t.Fatalf("got %v, want InUse", code)
	}
	_ = root
}

func TestRemovePhysicalFlagGuardsMountlessNode(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)
	// A node under the buffer driver (no mount ancestor): created below
	// the graph root directly, outside /disk.
	node, code := ops.CreatePath("/loose", KindFile)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	ops.Release(node)

	if code := ops.Remove("/loose", 0); code != PhysicalDeleteRequired {
		t.Fatalf("got %v, want PhysicalDeleteRequired without Physical flag", code)
	}
	survivor, code := ops.LoadPath("/loose", 0)
	if !code.Ok() {
		t.Fatalf("node should survive a refused remove, got %v", code)
	}
	ops.Release(survivor)

	if code := ops.Remove("/loose", Physical); !code.Ok() {
		t.Fatalf("remove with Physical flag: %v", code)
	}
	if _, code := ops.LoadPath("/loose", 0); code != NotFound {
		t.Fatalf("got %v, want NotFound after physical remove", code)
	}
}

func TestRemovePruneUpwardDeletesEmptyAncestors(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	mid, code := ops.CreatePath("/disk/a/b", KindDir)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	ops.Release(mid)
	leaf, code := ops.CreatePath("/disk/a/b/c", KindFile)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	ops.Release(leaf)

	if code := ops.Remove("/disk/a/b/c", PruneUpward); !code.Ok() {
		t.Fatalf("remove: %v", code)
	}
	for _, p := range []string{"a/b/c", "a/b", "a"} {
		if _, ok := driver.entries[p]; ok {
			t.Fatalf("entry %q should be pruned along with its now-empty ancestors", p)
		}
	}
	if _, ok := driver.entries[""]; ok {
		t.Fatalf("prune should never delete the mount point itself")
	}
	mountNode, code := ops.LoadPath("/disk", 0)
	if !code.Ok() {
		t.Fatalf("mount point should survive pruning, got %v", code)
	}
	ops.Release(mountNode)
}

func TestRenamePreservesIdentity(t *testing.T) {
	ops, _, driver := newTestGraphOps(t)
	file, code := ops.CreatePath("/disk/a", KindFile)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}

	if code := ops.Rename("/disk/a", "/disk/b"); !code.Ok() {
		t.Fatalf("rename: %v", code)
	}

	loaded, code := ops.LoadPath("/disk/b", 0)
	if !code.Ok() {
		t.Fatalf("load renamed path: %v", code)
	}
	if loaded != file {
		t.Fatalf("rename must preserve node identity")
	}
	ops.Release(loaded)
	ops.Release(file)

	if _, ok := driver.entries["a"]; ok {
		t.Fatalf("old driver path should be gone after rename")
	}
	if _, ok := driver.entries["b"]; !ok {
		t.Fatalf("new driver path should exist after rename")
	}
}

func TestRenameRejectsExistingTarget(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)
	a, _ := ops.CreatePath("/disk/a", KindFile)
	ops.Release(a)
	b, _ := ops.CreatePath("/disk/b", KindFile)
	ops.Release(b)

	if code := ops.Rename("/disk/a", "/disk/b"); code != AlreadyExists {
		t.Fatalf("got %v, want AlreadyExists", code)
	}
}

func TestRenameCrossMountUnsupported(t *testing.T) {
	ops, root, _ := newTestGraphOps(t)

	otherMount, code := ops.CreatePath("/other", KindDir)
	if !code.Ok() {
		t.Fatalf("create other mount point: %v", code)
	}
	if code := Mount(otherMount, newMemMountDriver(), FilesystemGroup); !code.Ok() {
		t.Fatalf("mount other: %v", code)
	}
	ops.Release(otherMount)

	file, _ := ops.CreatePath("/disk/a", KindFile)
	ops.Release(file)

	if code := ops.Rename("/disk/a", "/other/a"); code != CrossMountUnsupported {
		t.Fatalf("got %v, want CrossMountUnsupported", code)
	}
	_ = root
}

func TestLinkAndGetRelativePath(t *testing.T) {
	ops, _, _ := newTestGraphOps(t)

	target, code := ops.CreatePath("/disk/target.txt", KindFile)
	if !code.Ok() {
		t.Fatalf("create target: %v", code)
	}
	ops.Release(target)

	refBefore := target.RefCount()

	link, code := ops.Link("/disk/l", "/disk/target.txt")
	if !code.Ok() {
		t.Fatalf("link: %v", code)
	}
	if got := target.RefCount(); got != refBefore+1 {
		t.Fatalf("got target refcount %d after link, want %d (one increment for the link edge)", got, refBefore+1)
	}

	rel, code := ops.GetRelativePath("/disk", "/disk/target.txt")
	if !code.Ok() {
		t.Fatalf("get_relative_path: %v", code)
	}
	if rel != "target.txt" {
		t.Fatalf("got relative path %q, want %q", rel, "target.txt")
	}

	resolved, code := ops.LoadPath("/disk/l", ResolveLinks)
	if !code.Ok() {
		t.Fatalf("load through link: %v", code)
	}
	if resolved != target {
		t.Fatalf("link should resolve to the file it targets")
	}
	ops.Release(resolved)
	ops.Release(link)
}
