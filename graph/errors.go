package graph

import "fmt"

// Errno is the closed set of failure codes the node graph core can
// report. It plays the same role as fuse.Status in the teacher
// library: a small value type with an Ok() method, rather than an
// error-wrapping hierarchy.
type Errno int

const (
	OK Errno = iota
	InvalidArgument
	NotFound
	AlreadyExists
	NotADirectory
	HasChildren
	// InUse means the node a mutation targets still carries an
	// outstanding reference (§7): Unmount refuses outright; Remove/
	// RemoveRecursive instead detach the node and defer its physical
	// deletion to whoever releases that last reference (§4.5).
	InUse
	// PhysicalDeleteRequired means Remove/RemoveRecursive was asked to
	// delete a node with no mount ancestor and the caller did not pass
	// Physical (§7 "in-memory node with no mount deleted without
	// PHYSICAL flag") — the operation is refused, not deferred.
	PhysicalDeleteRequired
	TooManyLinks
	BrokenLink
	DriverError
	OutOfMemory
	CrossMountUnsupported
	PermissionDenied
)

var errnoNames = map[Errno]string{
	OK:                     "OK",
	InvalidArgument:        "invalid argument",
	NotFound:               "not found",
	AlreadyExists:          "already exists",
	NotADirectory:          "not a directory",
	HasChildren:            "directory has children",
	InUse:                  "in use",
	PhysicalDeleteRequired: "physical delete required",
	TooManyLinks:           "too many links",
	BrokenLink:             "broken link",
	DriverError:            "driver error",
	OutOfMemory:            "out of memory",
	CrossMountUnsupported:  "cross-mount unsupported",
	PermissionDenied:       "permission denied",
}

// Ok reports whether e represents success.
func (e Errno) Ok() bool { return e == OK }

func (e Errno) String() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Errno(%d)", int(e))
}

// Error implements the error interface so Errno can be returned
// wherever Go code expects an error, while call sites that want the
// closed enum can still type-assert or compare directly.
func (e Errno) Error() string { return e.String() }

// DriverErr wraps a driver-specific failure inside the DriverError
// kind, preserving the underlying error for inspection via errors.Unwrap.
type DriverErr struct {
	Op  string
	Err error
}

func (d *DriverErr) Error() string {
	return fmt.Sprintf("driver: %s: %v", d.Op, d.Err)
}

func (d *DriverErr) Unwrap() error { return d.Err }

func (d *DriverErr) Errno() Errno { return DriverError }

func wrapDriverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverErr{Op: op, Err: err}
}
