// Package diskdriver implements a ResourceDriver that mirrors a real
// directory tree on disk (§6 ResourceDriver contract), the way the
// teacher's loopback examples mirror a directory tree through FUSE.
// It is deliberately minimal: stdlib os only, no permission
// evaluation, no open-file-table bookkeeping — that belongs to the
// core's caller, not to a driver.
package diskdriver

import (
	"os"
	"path/filepath"

	"github.com/nodegraph/vfs/graph"
)

// Driver roots a mount at a real directory on disk.
type Driver struct {
	base  string
	index int
}

// New returns a Driver serving base as the mount's backing directory.
// index identifies the driver within whatever external registry the
// caller keeps (§6 "Index").
func New(base string, index int) *Driver {
	return &Driver{base: filepath.Clean(base), index: index}
}

func (d *Driver) Group() graph.DriverGroup { return graph.FilesystemGroup }
func (d *Driver) Index() int               { return d.index }

func (d *Driver) full(path string) string {
	if path == "" {
		return d.base
	}
	return filepath.Join(d.base, filepath.FromSlash(path))
}

// Stat reports whether path exists under the mount and, if so, its
// attributes (§6 "stat").
func (d *Driver) Stat(path string) (graph.Stat, bool, error) {
	fi, err := os.Lstat(d.full(path))
	if os.IsNotExist(err) {
		return graph.Stat{}, false, nil
	}
	if err != nil {
		return graph.Stat{}, false, err
	}

	kind := graph.KindFile
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		kind = graph.KindLink
	case fi.IsDir():
		kind = graph.KindDir
	}

	return graph.Stat{
		Kind:    kind,
		Size:    fi.Size(),
		Mode:    uint32(fi.Mode().Perm()),
		ModTime: fi.ModTime(),
	}, true, nil
}

// Locate returns path itself as the opaque handle; the driver has no
// richer identity to offer than the path relative to its own root.
func (d *Driver) Locate(path string) (any, error) {
	return path, nil
}

// Create makes a new file or directory on disk (§6 "create").
func (d *Driver) Create(path string, mode uint32, kind graph.Kind) error {
	full := d.full(path)
	if kind == graph.KindDir {
		perm := os.FileMode(mode)
		if perm == 0 {
			perm = 0755
		}
		return os.Mkdir(full, perm)
	}
	perm := os.FileMode(mode)
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	return f.Close()
}

// Remove deletes path on disk (§6 "remove").
func (d *Driver) Remove(path string) error {
	return os.Remove(d.full(path))
}

// Rename moves path on disk within the same mount (§6 "rename").
func (d *Driver) Rename(fromPath, toPath string) error {
	return os.Rename(d.full(fromPath), d.full(toPath))
}

// Open opens the file at handle (a path produced by Locate) for
// random-access reads and writes.
func (d *Driver) Open(handle any, _ uint32) (graph.IOHandle, error) {
	path, _ := handle.(string)
	f, err := os.OpenFile(d.full(path), os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &fileHandle{f: f}, nil
}

type fileHandle struct {
	f *os.File
}

func (h *fileHandle) Read(p []byte, off int64) (int, error) {
	n, err := h.f.ReadAt(p, off)
	if err != nil && n > 0 {
		return n, nil
	}
	return n, err
}

func (h *fileHandle) Write(p []byte, off int64) (int, error) {
	return h.f.WriteAt(p, off)
}

func (h *fileHandle) Close() error { return h.f.Close() }

var (
	_ graph.StatDriver = (*Driver)(nil)
	_ graph.Locator    = (*Driver)(nil)
	_ graph.Creator    = (*Driver)(nil)
	_ graph.Remover    = (*Driver)(nil)
	_ graph.Renamer    = (*Driver)(nil)
	_ graph.IOOpener   = (*Driver)(nil)
)
