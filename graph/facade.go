package graph

import (
	"sync"
)

// VFSFacade (§4.9, §2) is the thin caller-facing surface over
// GraphOps: open/read/write/seek/close/stat/list, each one a short
// sequence of GraphOps + Node calls. It owns no state of its own:
// Open hands each Handle straight to the caller and keeps no table of
// them — exactly the role
// rawBridge plays over nodefs in the teacher's fsops.go, minus the
// kernel file-handle numbering (§1: the file descriptor table is an
// external collaborator, not part of this core).
type VFSFacade struct {
	ops *GraphOps
}

// NewVFSFacade wraps ops in a caller-facing facade.
func NewVFSFacade(ops *GraphOps) *VFSFacade {
	return &VFSFacade{ops: ops}
}

// Handle is the synthetic descriptor Open hands back: a node
// reference plus an IOHandle opened against its resource, and an
// independent read/write cursor. Read, Write, Seek and Close serialize
// on an internal mutex, so goroutines sharing one Handle also share
// its cursor.
type Handle struct {
	mu     sync.Mutex
	ops    *GraphOps
	node   *Node
	io     IOHandle
	offset int64
	closed bool
}

// Open resolves path and opens its resource for I/O (§4.9 open). The
// returned Handle must be released with Close.
func (f *VFSFacade) Open(path string, flags uint32) (*Handle, Errno) {
	node, code := f.ops.LoadPath(path, ResolveLinks)
	if !code.Ok() {
		return nil, code
	}
	if node.IsDir() {
		f.ops.Release(node)
		return nil, NotADirectory
	}

	node.propertyLock.Lock()
	res := node.resource
	node.propertyLock.Unlock()
	if res.empty() {
		f.ops.Release(node)
		return nil, InvalidArgument
	}
	opener, ok := res.Driver.(IOOpener)
	if !ok {
		f.ops.Release(node)
		return nil, DriverError
	}
	io, err := opener.Open(res.Handle, flags)
	if err != nil {
		f.ops.Release(node)
		return nil, DriverError
	}

	return &Handle{ops: f.ops, node: node, io: io}, OK
}

// Create is the open-with-O_CREAT path: create_path followed by Open
// (§4.8, §4.9), collapsed into one call since the common case is
// "open this file, creating it if it doesn't exist yet".
func (f *VFSFacade) Create(path string, kind Kind, flags uint32) (*Handle, Errno) {
	node, code := f.ops.CreatePath(path, kind)
	if !code.Ok() {
		return nil, code
	}

	node.propertyLock.Lock()
	res := node.resource
	node.propertyLock.Unlock()
	if res.empty() {
		f.ops.Release(node)
		return nil, InvalidArgument
	}
	opener, ok := res.Driver.(IOOpener)
	if !ok {
		f.ops.Release(node)
		return nil, DriverError
	}
	io, err := opener.Open(res.Handle, flags)
	if err != nil {
		f.ops.Release(node)
		return nil, DriverError
	}

	return &Handle{ops: f.ops, node: node, io: io}, OK
}

// Read reads into p starting at the handle's current offset,
// advancing it by the number of bytes read.
func (h *Handle) Read(p []byte) (int, Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, InvalidArgument
	}
	n, err := h.io.Read(p, h.offset)
	h.offset += int64(n)
	if err != nil {
		return n, DriverError
	}
	return n, OK
}

// Write writes p at the handle's current offset, advancing it by the
// number of bytes written.
func (h *Handle) Write(p []byte) (int, Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, InvalidArgument
	}
	n, err := h.io.Write(p, h.offset)
	h.offset += int64(n)
	if err != nil {
		return n, DriverError
	}
	return n, OK
}

// Seek repositions the handle's cursor to off and returns the new
// offset.
func (h *Handle) Seek(off int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offset = off
	return h.offset
}

// Stat returns the underlying node's cached attributes.
func (h *Handle) Stat() Stat {
	return h.node.Stat()
}

// Close releases the handle's IOHandle and the node reference Open
// took out. Closing twice is a no-op.
func (h *Handle) Close() Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return OK
	}
	h.closed = true
	err := h.io.Close()
	h.ops.Release(h.node)
	if err != nil {
		return DriverError
	}
	return OK
}

// Stat resolves path and returns its cached attributes without
// opening it (§4.9 stat).
func (f *VFSFacade) Stat(path string) (Stat, Errno) {
	node, code := f.ops.LoadPath(path, ResolveLinks)
	if !code.Ok() {
		return Stat{}, code
	}
	st := node.Stat()
	f.ops.Release(node)
	return st, OK
}

// Entry is one row of a List result: a child's name and kind, cheap
// to read without resolving the child's own resource.
type Entry struct {
	Name string
	Kind Kind
}

// List resolves path and returns its immediate children (§4.9 list).
// path must name a directory-shaped node.
func (f *VFSFacade) List(path string) ([]Entry, Errno) {
	node, code := f.ops.LoadPath(path, ResolveLinks)
	if !code.Ok() {
		return nil, code
	}
	defer f.ops.Release(node)
	if !node.IsDir() {
		return nil, NotADirectory
	}
	children := node.Children()
	out := make([]Entry, 0, len(children))
	for _, c := range children {
		out = append(out, Entry{Name: c.Name(), Kind: c.Kind()})
	}
	return out, OK
}
