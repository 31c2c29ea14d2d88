package graph

import "time"

// Stat carries the attributes the core caches on a Node (§3
// "stat"). The driver layer and permission evaluation that interpret
// most of these fields live outside the core (§1); the core only
// stores and forwards them.
type Stat struct {
	Kind    Kind
	Size    int64
	Mode    uint32
	ModTime time.Time
	ATime   time.Time
	CTime   time.Time
	UID     uint32
	GID     uint32
	Nlink   uint32
}

// ResourceDriver is the capability set a backing-store driver exposes
// to the core (§6). Every driver must report its group and index;
// the remaining capabilities are optional, mirroring the
// NodeLookuper/NodeCreater/... pattern the teacher uses for
// InodeEmbedder — a driver that doesn't implement a capability simply
// can't be asked to perform it. Without StatDriver a missed lookup
// finds nothing; without Creator, Remover or Renamer the core makes
// the in-memory change and skips the driver call; without IOOpener,
// opening a node's resource fails (DriverError from VFSFacade).
type ResourceDriver interface {
	Group() DriverGroup
	Index() int
}

// StatDriver answers metadata queries for an object identified by a
// path relative to the mount (§6 "stat").
type StatDriver interface {
	Stat(path string) (Stat, bool, error)
}

// Locator produces the opaque per-object handle installed on a node's
// Resource (§6 "locate").
type Locator interface {
	Locate(path string) (any, error)
}

// Creator performs physical creation of a new object (§6 "create").
type Creator interface {
	Create(path string, mode uint32, kind Kind) error
}

// Remover performs physical removal (§6 "remove").
type Remover interface {
	Remove(path string) error
}

// Renamer performs a physical rename within one driver's namespace (§6 "rename").
type Renamer interface {
	Rename(fromPath, toPath string) error
}

// IOHandle is a minimal synthetic descriptor used internally by the
// core (symlink-body reads, buffer writes) and by VFSFacade. It is
// deliberately not a kernel file-descriptor table entry: no flags,
// no process ownership, no fd numbers — those belong to the shell
// around the core that spec.md §1 places out of scope.
type IOHandle interface {
	Read(p []byte, off int64) (int, error)
	Write(p []byte, off int64) (int, error)
	Close() error
}

// IOOpener opens an IOHandle against a located driver handle (§6 "open").
type IOOpener interface {
	Open(handle any, flags uint32) (IOHandle, error)
}

// Closer is an optional teardown hook invoked when a mount using this
// driver is unmounted (§4.7 "calls resource.driver.close").
type Closer interface {
	Close() error
}

// Resource is the per-node driver binding (§3 "resource").
type Resource struct {
	Driver ResourceDriver
	Handle any
}

func (r Resource) empty() bool { return r.Driver == nil }
