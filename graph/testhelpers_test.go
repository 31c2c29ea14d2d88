package graph

import (
	"sync"
	"testing"

	"github.com/nodegraph/vfs/internal/testutil"
)

// verboseLog mirrors the teacher's testutil.VerboseTest()-gated debug
// logging (nodefs/mem_test.go sets opts.Debug from it); this core has
// no mount-option Debug flag to thread it through, so tests log their
// own setup directly when DEBUG=1.
func verboseLog(t *testing.T, format string, args ...any) {
	t.Helper()
	if testutil.VerboseTest() {
		t.Logf(format, args...)
	}
}

// fakeDriver is the minimal ResourceDriver used by tests that only
// need a mount to exist, not to do anything (mount/unmount
// bookkeeping, mount-pointer inheritance).
type fakeDriver struct {
	closed bool
}

func (d *fakeDriver) Group() DriverGroup { return FilesystemGroup }
func (d *fakeDriver) Index() int         { return 0 }
func (d *fakeDriver) Close() error       { d.closed = true; return nil }

var _ Closer = (*fakeDriver)(nil)

// memMountDriver is a full in-memory ResourceDriver (stat/locate/
// create/remove/rename/open) used by GraphOps tests that need a real
// mount without touching disk. It plays the role the teacher's
// in-process fake filesystems play in nodefs unit tests: exercising
// the core's driver-dispatch logic without a real kernel or disk
// underneath it.
type memMountDriver struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

type memEntry struct {
	isDir bool
	data  []byte
}

func newMemMountDriver() *memMountDriver {
	return &memMountDriver{entries: map[string]*memEntry{"": {isDir: true}}}
}

func (d *memMountDriver) Group() DriverGroup { return FilesystemGroup }
func (d *memMountDriver) Index() int         { return 0 }

func (d *memMountDriver) Stat(path string) (Stat, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[path]
	if !ok {
		return Stat{}, false, nil
	}
	kind := KindFile
	size := int64(0)
	if e.isDir {
		kind = KindDir
	} else {
		size = int64(len(e.data))
	}
	return Stat{Kind: kind, Size: size}, true, nil
}

func (d *memMountDriver) Locate(path string) (any, error) {
	return path, nil
}

func (d *memMountDriver) Create(path string, mode uint32, kind Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.entries[path]; exists {
		return errAlreadyExists
	}
	d.entries[path] = &memEntry{isDir: kind == KindDir}
	return nil
}

func (d *memMountDriver) Remove(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, path)
	return nil
}

func (d *memMountDriver) Rename(fromPath, toPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[fromPath]
	if !ok {
		return errNotFound
	}
	delete(d.entries, fromPath)
	d.entries[toPath] = e
	return nil
}

func (d *memMountDriver) Open(handle any, _ uint32) (IOHandle, error) {
	path, _ := handle.(string)
	return &memHandle{driver: d, path: path}, nil
}

type memHandle struct {
	driver *memMountDriver
	path   string
}

func (h *memHandle) Read(p []byte, off int64) (int, error) {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()
	e, ok := h.driver.entries[h.path]
	if !ok || off >= int64(len(e.data)) {
		return 0, nil
	}
	return copy(p, e.data[off:]), nil
}

func (h *memHandle) Write(p []byte, off int64) (int, error) {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()
	e, ok := h.driver.entries[h.path]
	if !ok {
		e = &memEntry{}
		h.driver.entries[h.path] = e
	}
	end := off + int64(len(p))
	if end > int64(len(e.data)) {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[off:], p)
	return len(p), nil
}

func (h *memHandle) Close() error { return nil }

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const (
	errAlreadyExists = simpleErr("already exists")
	errNotFound      = simpleErr("not found")
)
