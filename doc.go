// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is a repository containing the node-graph core of a virtual
// filesystem: a rooted tree of nodes, per-node locking and reference
// counting, a bounded eviction cache, path traversal with symlink
// resolution and on-demand materialization, and mount indirection for
// splicing a driver's namespace into the tree.
//
// See github.com/nodegraph/vfs/graph for the in-depth documentation
// for this library, github.com/nodegraph/vfs/example/diskdriver for a
// disk-backed ResourceDriver, and github.com/nodegraph/vfs/example/vfsgraphtool
// for a command-line smoke-test client.
package lib
