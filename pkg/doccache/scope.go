package doccache

import (
	"sort"

	"github.com/sorahex/rubylsp/pkg/fqn"
)

// ScopeTree is the materialized result of one walk over a document's parse
// tree: every Scope, plus a flattened, sorted index for fast position
// lookup, answered by a binary search over a flattened ordered list of
// (range, scope-id) pairs.
type ScopeTree struct {
	scopes []*Scope // indexed by Scope.ID
	flat   []flatRange
}

type flatRange struct {
	start, end uint32
	scopeID    int
}

// Root returns the top-level scope (ID 0), or nil if the tree is empty.
func (t *ScopeTree) Root() *Scope {
	if len(t.scopes) == 0 {
		return nil
	}
	return t.scopes[0]
}

// Scope returns the scope with the given ID.
func (t *ScopeTree) Scope(id int) *Scope {
	if id < 0 || id >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

// ScopeAt returns the innermost scope containing pos, via binary search over
// the flattened range index. Every byte position inside the document falls
// within exactly one leaf-most range, since scope ranges are pairwise
// disjoint-or-nested and the flattened index holds only the innermost
// (most-recently-opened, i.e. deepest) range covering each byte.
func (t *ScopeTree) ScopeAt(pos Position) *Scope {
	p := uint32(pos)
	ranges := t.flat
	i := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].end > p
	})
	if i >= len(ranges) || ranges[i].start > p {
		return nil
	}
	return t.scopes[ranges[i].scopeID]
}

// Locals resolves name as seen from scope id, checking each scope's own
// locals while walking up through inherited-namespace (block) scopes, and
// stopping after the first fresh-namespace scope. Returns the Location of
// the first assignment, if any is visible.
func (t *ScopeTree) Locals(id int, name string) (Location, bool) {
	for id >= 0 {
		s := t.scopes[id]
		if loc, ok := s.locals[name]; ok {
			return loc, true
		}
		if s.Kind.freshNamespace() {
			return Location{}, false
		}
		id = s.Parent
	}
	return Location{}, false
}

// LocalNames returns every local variable name visible from scope id,
// walking up through inherited-namespace (block) scopes the same way Locals
// does, stopping at (and including) the nearest fresh-namespace boundary.
// Used by the Query Layer to offer local variables as completion candidates.
func (t *ScopeTree) LocalNames(id int) []string {
	seen := make(map[string]bool)
	var names []string
	for id >= 0 {
		s := t.scopes[id]
		for name := range s.locals {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if s.Kind.freshNamespace() {
			break
		}
		id = s.Parent
	}
	return names
}

// NestingAt returns the stack of owner FQNs enclosing pos, outermost first
// (matching the order pkg/fqn.ResolveBareConstant expects for its nesting
// parameter). Scopes without an Owner (top-level, method, block) are
// transparent and simply contribute nothing.
func (t *ScopeTree) NestingAt(pos Position) []fqn.FQN {
	s := t.ScopeAt(pos)
	var rev []fqn.FQN
	for s != nil {
		if s.Owner != nil {
			rev = append(rev, *s.Owner)
		}
		if s.Parent < 0 {
			break
		}
		s = t.scopes[s.Parent]
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// InnermostOwner returns the Owner FQN of the nearest enclosing class/
// module/singleton-class at pos, and whether one exists (false at
// top-level).
func (t *ScopeTree) InnermostOwner(pos Position) (fqn.FQN, bool) {
	nesting := t.NestingAt(pos)
	if len(nesting) == 0 {
		return fqn.FQN{}, false
	}
	return nesting[len(nesting)-1], true
}

// Builder accumulates scope-enter/scope-exit/local-assignment events emitted
// by a single walk of the Analyzer and materializes them into a ScopeTree.
// Not safe for concurrent use; one Builder per parse.
type Builder struct {
	scopes []*Scope
	stack  []int // open scope IDs, innermost last
}

// NewBuilder returns a Builder with its top-level scope already open,
// spanning [0, srcLen).
func NewBuilder(srcLen uint32) *Builder {
	b := &Builder{}
	b.scopes = append(b.scopes, &Scope{
		ID:        0,
		Kind:      ScopeTopLevel,
		StartByte: 0,
		EndByte:   srcLen,
		Parent:    -1,
		locals:    make(map[string]Location),
	})
	b.stack = []int{0}
	return b
}

// EnterScope opens a new child scope of the given kind starting at
// startByte, nested under the currently innermost open scope, and returns
// its ID.
func (b *Builder) EnterScope(kind ScopeKind, startByte uint32) int {
	parent := b.stack[len(b.stack)-1]
	id := len(b.scopes)
	s := &Scope{
		ID:        id,
		Kind:      kind,
		StartByte: startByte,
		Parent:    parent,
		locals:    make(map[string]Location),
	}
	b.scopes = append(b.scopes, s)
	b.scopes[parent].Children = append(b.scopes[parent].Children, id)
	b.stack = append(b.stack, id)
	return id
}

// SetOwner tags scope id with the FQN of the class/module/singleton-class it
// was opened for. Called by the Analyzer immediately after EnterScope for
// ScopeClass, ScopeModule, and ScopeSingletonClass scopes.
func (b *Builder) SetOwner(id int, owner fqn.FQN) {
	b.scopes[id].Owner = &owner
}

// ExitScope closes the innermost open scope at endByte.
func (b *Builder) ExitScope(endByte uint32) {
	id := b.stack[len(b.stack)-1]
	b.scopes[id].EndByte = endByte
	b.stack = b.stack[:len(b.stack)-1]
}

// AssignLocal records an assignment to name seen from the innermost open
// scope. If name is already visible — found in the innermost scope itself or
// any enclosing block scope up to (and including) the nearest
// fresh-namespace boundary — this is a write to that existing variable and
// its first-assignment Location is left untouched. Otherwise it is a brand
// new local, and it is recorded in the innermost scope itself: a block
// introduces a variable never seen in an enclosing scope as a variable of
// its own, not of its enclosing method.
func (b *Builder) AssignLocal(name string, loc Location) {
	innermost := b.stack[len(b.stack)-1]

	id := innermost
	for {
		s := b.scopes[id]
		if _, exists := s.locals[name]; exists {
			return
		}
		if s.Kind.freshNamespace() {
			break
		}
		id = s.Parent
	}
	b.scopes[innermost].locals[name] = loc
}

// Finish closes any scopes still open at the document's end, sealing them to
// endByte, and builds the flattened lookup index.
func (b *Builder) Finish(endByte uint32) *ScopeTree {
	for len(b.stack) > 0 {
		b.ExitScope(endByte)
	}

	t := &ScopeTree{scopes: b.scopes}
	t.flat = flatten(b.scopes)
	return t
}

// flatten produces the innermost-range-wins flat index: for every scope,
// its own range minus the ranges covered by its children, sorted by start.
// Equivalent to a pre-order walk emitting only leaf-of-the-moment spans.
func flatten(scopes []*Scope) []flatRange {
	if len(scopes) == 0 {
		return nil
	}
	var out []flatRange
	var walk func(id int)
	walk = func(id int) {
		s := scopes[id]
		if len(s.Children) == 0 {
			out = append(out, flatRange{start: s.StartByte, end: s.EndByte, scopeID: id})
			return
		}
		cursor := s.StartByte
		for _, childID := range s.Children {
			c := scopes[childID]
			if c.StartByte > cursor {
				out = append(out, flatRange{start: cursor, end: c.StartByte, scopeID: id})
			}
			walk(childID)
			cursor = c.EndByte
		}
		if cursor < s.EndByte {
			out = append(out, flatRange{start: cursor, end: s.EndByte, scopeID: id})
		}
	}
	walk(0)
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}
