// Package graph implements the node-graph core of an in-kernel style
// virtual filesystem: a rooted tree of Nodes, per-node locking and
// reference counting, a bounded eviction cache for deferred physical
// deletion, path traversal with symlink resolution and on-demand
// materialization through pluggable ResourceDrivers, and mount
// indirection for splicing a driver's namespace into the tree.
//
// The package deliberately stops at the node graph: the file
// descriptor table, permission evaluation, and the wire protocol that
// would sit in front of a real kernel mount point are all external
// collaborators, not part of this core.
package graph
