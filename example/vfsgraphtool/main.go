// Copyright 2016 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// vfsgraphtool is a command-line smoke-test client for the node
// graph core: it mounts a real directory as a disk-backed driver and
// runs one operation against the resulting graph, printing the
// result. It exists to exercise graph.GraphOps/VFSFacade end to end
// against a real driver, the way the teacher's example/hello exists
// to exercise nodefs end to end against a real kernel mount.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nodegraph/vfs/example/diskdriver"
	"github.com/nodegraph/vfs/graph"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  vfsgraphtool DISKDIR ls PATH
  vfsgraphtool DISKDIR stat PATH
  vfsgraphtool DISKDIR cat PATH
  vfsgraphtool DISKDIR write PATH DATA
  vfsgraphtool DISKDIR mkdir PATH
  vfsgraphtool [-physical] [-prune] DISKDIR rm PATH
  vfsgraphtool [-physical] [-prune] DISKDIR rmr PATH
  vfsgraphtool DISKDIR ln PATH TARGET
  vfsgraphtool DISKDIR mv PATH NEWPATH

DISKDIR is mounted at /disk in the graph; PATH arguments are graph
paths, e.g. /disk/sub/file.txt.
`)
	flag.PrintDefaults()
}

func main() {
	debug := flag.Bool("debug", false, "log every operation's result")
	physical := flag.Bool("physical", false, "for rm/rmr: allow deleting a node with no mount ancestor")
	prune := flag.Bool("prune", false, "for rm/rmr: also delete ancestor directories left empty")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	diskDir, op, rest := args[0], args[1], args[2:]

	root := graph.NewRoot()
	bufDriver := graph.NewBufferDriver()
	cache := graph.NewEvictionCache(graph.EvictionCacheSize)
	ops := graph.NewGraphOps(root, cache, bufDriver)
	facade := graph.NewVFSFacade(ops)

	mountNode, code := ops.CreatePath("/disk", graph.KindDir)
	if !code.Ok() {
		log.Fatalf("create mount point: %v", code)
	}
	if code := graph.Mount(mountNode, diskdriver.New(diskDir, 0), graph.FilesystemGroup); !code.Ok() {
		log.Fatalf("mount %s: %v", diskDir, code)
	}
	ops.Release(mountNode)

	if *debug {
		log.Printf("mounted %s at /disk", diskDir)
	}

	var flags graph.RemoveFlag
	if *physical {
		flags |= graph.Physical
	}
	if *prune {
		flags |= graph.PruneUpward
	}

	if err := run(facade, ops, op, rest, flags); err != nil {
		log.Fatal(err)
	}
}

func run(f *graph.VFSFacade, ops *graph.GraphOps, op string, args []string, removeFlags graph.RemoveFlag) error {
	switch op {
	case "ls":
		entries, code := f.List(arg(args, 0))
		if !code.Ok() {
			return fmt.Errorf("ls: %v", code)
		}
		for _, e := range entries {
			fmt.Printf("%-8s %s\n", e.Kind, e.Name)
		}
		return nil

	case "stat":
		st, code := f.Stat(arg(args, 0))
		if !code.Ok() {
			return fmt.Errorf("stat: %v", code)
		}
		fmt.Printf("kind=%s size=%d mode=%o mtime=%s\n", st.Kind, st.Size, st.Mode, st.ModTime)
		return nil

	case "cat":
		h, code := f.Open(arg(args, 0), 0)
		if !code.Ok() {
			return fmt.Errorf("open: %v", code)
		}
		defer h.Close()
		buf := make([]byte, 4096)
		for {
			n, code := h.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if n == 0 || !code.Ok() {
				break
			}
		}
		return nil

	case "write":
		h, code := f.Create(arg(args, 0), graph.KindFile, 0)
		if !code.Ok() {
			return fmt.Errorf("create: %v", code)
		}
		defer h.Close()
		if _, code := h.Write([]byte(arg(args, 1))); !code.Ok() {
			return fmt.Errorf("write: %v", code)
		}
		return nil

	case "mkdir":
		node, code := ops.CreatePath(arg(args, 0), graph.KindDir)
		if !code.Ok() {
			return fmt.Errorf("mkdir: %v", code)
		}
		ops.Release(node)
		return nil

	case "rm":
		if code := ops.Remove(arg(args, 0), removeFlags); !code.Ok() {
			return fmt.Errorf("rm: %v", code)
		}
		return nil

	case "rmr":
		inUse, code := ops.RemoveRecursive(arg(args, 0), removeFlags)
		if !code.Ok() {
			return fmt.Errorf("rmr: %v", code)
		}
		if inUse > 0 {
			log.Printf("rmr: %d subtree(s) still in use, physical delete deferred", inUse)
		}
		return nil

	case "ln":
		node, code := ops.Link(arg(args, 0), arg(args, 1))
		if !code.Ok() {
			return fmt.Errorf("ln: %v", code)
		}
		ops.Release(node)
		return nil

	case "mv":
		if code := ops.Rename(arg(args, 0), arg(args, 1)); !code.Ok() {
			return fmt.Errorf("mv: %v", code)
		}
		return nil

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
