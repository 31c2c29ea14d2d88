package graph

import (
	"bytes"
	"testing"
)

func newTestFacade(t *testing.T) (*VFSFacade, *GraphOps) {
	t.Helper()
	ops, _, _ := newTestGraphOps(t)
	return NewVFSFacade(ops), ops
}

func TestFacadeCreateWriteReadRoundTrip(t *testing.T) {
	f, _ := newTestFacade(t)

	h, code := f.Create("/disk/f.txt", KindFile, 0)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	n, code := h.Write([]byte("hello, graph"))
	if !code.Ok() {
		t.Fatalf("write: %v", code)
	}
	if n != len("hello, graph") {
		t.Fatalf("got %d bytes written, want %d", n, len("hello, graph"))
	}
	if code := h.Close(); !code.Ok() {
		t.Fatalf("close: %v", code)
	}

	h2, code := f.Open("/disk/f.txt", 0)
	if !code.Ok() {
		t.Fatalf("open: %v", code)
	}
	buf := make([]byte, 64)
	n, code = h2.Read(buf)
	if !code.Ok() {
		t.Fatalf("read: %v", code)
	}
	if !bytes.Equal(buf[:n], []byte("hello, graph")) {
		t.Fatalf("got %q, want %q", buf[:n], "hello, graph")
	}
	if code := h2.Close(); !code.Ok() {
		t.Fatalf("close: %v", code)
	}
}

func TestFacadeOpenRejectsDirectory(t *testing.T) {
	f, ops := newTestFacade(t)
	dir, _ := ops.CreatePath("/disk/sub", KindDir)
	ops.Release(dir)

	if _, code := f.Open("/disk/sub", 0); code != NotADirectory {
		t.Fatalf("got %v, want NotADirectory", code)
	}
}

func TestFacadeCloseIsIdempotent(t *testing.T) {
	f, _ := newTestFacade(t)
	h, code := f.Create("/disk/f.txt", KindFile, 0)
	if !code.Ok() {
		t.Fatalf("create: %v", code)
	}
	if code := h.Close(); !code.Ok() {
		t.Fatalf("first close: %v", code)
	}
	if code := h.Close(); !code.Ok() {
		t.Fatalf("second close should be a no-op OK, got %v", code)
	}
}

func TestFacadeList(t *testing.T) {
	f, ops := newTestFacade(t)
	a, _ := ops.CreatePath("/disk/a", KindFile)
	ops.Release(a)
	b, _ := ops.CreatePath("/disk/b", KindDir)
	ops.Release(b)

	entries, code := f.List("/disk")
	if !code.Ok() {
		t.Fatalf("list: %v", code)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	seen := map[string]Kind{}
	for _, e := range entries {
		seen[e.Name] = e.Kind
	}
	if seen["a"] != KindFile || seen["b"] != KindDir {
		t.Fatalf("got %v, want a=File b=Dir", seen)
	}
}

func TestFacadeStat(t *testing.T) {
	f, ops := newTestFacade(t)
	file, _ := ops.CreatePath("/disk/f", KindFile)
	ops.Release(file)

	st, code := f.Stat("/disk/f")
	if !code.Ok() {
		t.Fatalf("stat: %v", code)
	}
	if st.Kind != KindFile {
		t.Fatalf("got kind %v, want File", st.Kind)
	}
}
