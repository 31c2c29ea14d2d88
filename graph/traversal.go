package graph

// Traversal is the path walker (§4.6), the hard core of the graph:
// per-component lookup under the scanned node's branchLock only (not
// held across descent, §4.3 point 1), callback-driven materialization
// on a miss, and symlink resolution bounded by MaxLinkHops.
//
// Grounded on the teacher's fsconnector.go Node()/LookupNode
// (component loop, lock-scan-unlock-descend shape) and fsops.go's
// internalLookup (miss -> callback -> attach); the symlink-hop
// bookkeeping has no teacher analogue (FUSE resolves symlinks in the
// kernel, not in nodefs) and is built directly from §4.6's algorithm.

// Flag controls Traversal behavior (§4.6).
type Flag uint8

const (
	// ResolveLinks follows a terminal Link node to its target,
	// restarting the walk from the link's parent.
	ResolveLinks Flag = 1 << iota
	// IgnoreLast stops one component short of the end, leaving the
	// last component unresolved for the caller to handle.
	IgnoreLast
)

// Materialize is invoked by Traversal on a child-miss (§4.2 "Glossary:
// materialization callback"). mountRelPath is the path from the
// nearest enclosing mount's base up to and including name, or empty
// if there is no enclosing mount. A nil result with OK means "no such
// child"; any other Errno aborts the walk with that code.
type Materialize func(parent *Node, name string, mountRelPath string, ctx any) (*Node, Errno)

// Result is what Traverse hands back: the resolved node (carrying one
// caller-owed reference), and the unconsumed suffix of the path.
type Result struct {
	Node      *Node
	Remainder string
}

// Traverse resolves path starting from start, optionally
// materializing missing children via materialize, and optionally
// following symlinks. The returned node carries a reference the
// caller must release via node.decRef() (exposed through GraphOps and
// VFSFacade, not directly — see Release).
func Traverse(path string, start *Node, flags Flag, materialize Materialize, ctx any) (Result, Errno) {
	if start == nil {
		return Result{}, InvalidArgument
	}

	graphRoot := start
	cur := start
	cur.incRef()

	var origin *Node
	linkHops := 0
	remainder := ""

linkLoop:
	for {
		lex := newLexer(path)
		mountBaseStart := -1

		for {
			s, e, isLast, ok := lex.next()
			if !ok {
				remainder = ""
				break
			}
			comp := path[s:e]

			if flags&IgnoreLast != 0 && isLast {
				remainder = path[s:]
				break
			}

			if (cur.kind == KindMount || cur.kind == KindDevice) && mountBaseStart < 0 {
				mountBaseStart = s
			}

			var next *Node
			switch comp {
			case "..":
				next = cur.parent
				if next == nil {
					next = cur
				}
			case ".":
				next = cur
			default:
				cur.branchLock.Lock()
				next = findChild(cur, comp)
				if next == nil && materialize != nil {
					mountRel := ""
					if mountBaseStart >= 0 {
						mountRel = path[mountBaseStart:e]
					}
					n, code := materialize(cur, comp, mountRel, ctx)
					if !code.Ok() {
						cur.branchLock.Unlock()
						cur.decRef()
						return Result{Remainder: path[s:]}, code
					}
					if n != nil {
						next = n
					}
				}
				cur.branchLock.Unlock()
			}

			if next == nil {
				remainder = path[s:]
				cur.decRef()
				if origin != nil {
					return Result{Remainder: remainder}, BrokenLink
				}
				return Result{Remainder: remainder}, NotFound
			}

			if next != cur {
				next.incRef()
				cur.decRef()
				cur = next
			}

			if isLast {
				remainder = ""
				break
			}
		}

		if flags&ResolveLinks == 0 || cur.kind != KindLink {
			break linkLoop
		}

		cur.propertyLock.Lock()
		cached := cur.linkTarget
		cur.propertyLock.Unlock()
		if cached != nil {
			cached.incRef()
			cur.decRef()
			cur = cached
			break linkLoop
		}

		body, err := readLinkBody(cur)
		if err != nil || len(body) == 0 {
			cur.decRef()
			return Result{}, BrokenLink
		}

		linkHops++
		if linkHops >= MaxLinkHops {
			cur.decRef()
			return Result{}, TooManyLinks
		}

		if origin == nil {
			origin = cur
		} else {
			cur.decRef()
		}

		var next *Node
		if len(body) > 0 && body[0] == '/' {
			// An absolute body resolves from the graph root, like a
			// POSIX symlink whose target starts with "/" (§4.6).
			next = graphRoot
		} else {
			next = cur.parent
			if next == nil {
				next = cur
			}
		}
		next.incRef()
		cur = next
		path = string(body)
	}

	if origin != nil {
		origin.propertyLock.Lock()
		origin.linkTarget = cur
		origin.propertyLock.Unlock()
		origin.decRef()
	}

	return Result{Node: cur, Remainder: remainder}, OK
}
