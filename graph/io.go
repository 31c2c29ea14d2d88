package graph

import "errors"

// ErrNoResource is returned when an I/O operation is attempted on a
// node carrying no driver resource.
var ErrNoResource = errors.New("node has no resource")

// ErrUnsupported is returned when a driver does not implement the
// capability an operation needs.
var ErrUnsupported = errors.New("driver does not support this operation")

// readLinkBody reads the full content a Link node's resource holds
// (§4.6: "read the link body through vfs_read using a synthetic
// descriptor"). It is a minimal internal reader, not the file
// descriptor table spec.md §1 places out of scope: no flags, no
// process ownership, just enough to pull symlink bodies and buffer
// contents.
func readLinkBody(n *Node) ([]byte, error) {
	n.propertyLock.Lock()
	res := n.resource
	n.propertyLock.Unlock()

	if res.empty() {
		return nil, ErrNoResource
	}
	opener, ok := res.Driver.(IOOpener)
	if !ok {
		return nil, ErrUnsupported
	}
	h, err := opener.Open(res.Handle, 0)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	buf := make([]byte, 4096)
	total := 0
	for {
		n2, err := h.Read(buf[total:], int64(total))
		if n2 > 0 {
			total += n2
		}
		if err != nil || n2 == 0 {
			break
		}
		if total == len(buf) {
			buf = append(buf, make([]byte, len(buf))...)
		}
	}
	return buf[:total], nil
}

// writeAll writes data as the complete content of n's resource,
// used by link() to store the relative-path body (§4.8 link).
func writeAll(n *Node, data []byte) error {
	n.propertyLock.Lock()
	res := n.resource
	n.propertyLock.Unlock()

	if res.empty() {
		return ErrNoResource
	}
	opener, ok := res.Driver.(IOOpener)
	if !ok {
		return ErrUnsupported
	}
	h, err := opener.Open(res.Handle, 0)
	if err != nil {
		return err
	}
	defer h.Close()

	_, err = h.Write(data, 0)
	return err
}
