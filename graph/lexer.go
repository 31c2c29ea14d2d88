package graph

// lexer splits a path into its / -separated components without
// allocating (§4.1 PathLexer). Leading and repeated separators
// collapse; an empty path or a path consisting only of separators
// yields no components.
//
// Grounded on the component-walking loops in the teacher's
// fsconnector.go (Node/LookupNode), generalized from a one-shot
// strings.Split into an incremental cursor so Traversal can interleave
// lexing with locking and restart mid-path for symlink resolution.
type lexer struct {
	path string
	pos  int
}

func newLexer(path string) *lexer {
	return &lexer{path: path}
}

// next returns the next component as a [start, end) byte range into
// path, whether it is the last component, and whether a component was
// found at all.
func (l *lexer) next() (start, end int, isLast bool, ok bool) {
	for l.pos < len(l.path) && l.path[l.pos] == '/' {
		l.pos++
	}
	if l.pos >= len(l.path) {
		return 0, 0, false, false
	}
	start = l.pos
	for l.pos < len(l.path) && l.path[l.pos] != '/' {
		l.pos++
	}
	end = l.pos

	rest := l.pos
	for rest < len(l.path) && l.path[rest] == '/' {
		rest++
	}
	isLast = rest >= len(l.path)
	return start, end, isLast, true
}
