package graph

import "sync"

// BufferDriver is the in-memory ResourceDriver backing BUFFER_FILE
// (§6 "BUFFER_FILE constant"): mount-less subtrees, and the synthetic
// bodies GraphOps.Link writes for every Link node, regardless of
// which real mount the link itself lives under.
//
// Grounded on the teacher's nodefs in-memory file pattern
// (defaultfile.go holds its content as a plain []byte guarded by a
// single mutex); generalized here to a map keyed by opaque handle
// identity rather than one fixed buffer per open file, since a single
// BufferDriver instance backs every link/buffer node in the graph
// rather than one file.
type BufferDriver struct {
	mu   sync.Mutex
	data map[any][]byte
}

// NewBufferDriver constructs an empty BufferDriver.
func NewBufferDriver() *BufferDriver {
	return &BufferDriver{data: make(map[any][]byte)}
}

func (d *BufferDriver) Group() DriverGroup { return BufferGroup }
func (d *BufferDriver) Index() int         { return BufferFile }

// Open returns an IOHandle over the buffer identified by handle,
// creating it empty on first use.
func (d *BufferDriver) Open(handle any, _ uint32) (IOHandle, error) {
	d.mu.Lock()
	if _, ok := d.data[handle]; !ok {
		d.data[handle] = nil
	}
	d.mu.Unlock()
	return &bufferHandle{driver: d, key: handle}, nil
}

// Remove is called by GraphOps when it physically deletes a node
// backed by this driver; path is that node's graph-relative path, not
// the handle its buffer is keyed by. It is a no-op: the buffer stays
// in the map, since nothing here maps path back to a handle.
func (d *BufferDriver) Remove(path string) error {
	return nil
}

func (d *BufferDriver) forget(handle any) {
	d.mu.Lock()
	delete(d.data, handle)
	d.mu.Unlock()
}

type bufferHandle struct {
	driver *BufferDriver
	key    any
}

func (h *bufferHandle) Read(p []byte, off int64) (int, error) {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()
	buf := h.driver.data[h.key]
	if off >= int64(len(buf)) {
		return 0, nil
	}
	n := copy(p, buf[off:])
	return n, nil
}

func (h *bufferHandle) Write(p []byte, off int64) (int, error) {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()
	buf := h.driver.data[h.key]
	end := off + int64(len(p))
	if end > int64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[off:], p)
	h.driver.data[h.key] = buf
	return len(p), nil
}

func (h *bufferHandle) Close() error { return nil }
