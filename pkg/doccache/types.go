// Package doccache implements the per-document cache: parsed text, a
// derived local-variable scope tree, and position→scope lookup, for every
// file currently open in the editor.
package doccache

import "github.com/sorahex/rubylsp/pkg/fqn"

// ScopeKind tags what kind of lexical region a Scope denotes, and therefore
// how its local-variable namespace relates to its parent's.
type ScopeKind int

const (
	ScopeTopLevel ScopeKind = iota
	ScopeModule
	ScopeClass
	ScopeSingletonClass
	ScopeMethod
	ScopeBlock
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeTopLevel:
		return "top-level"
	case ScopeModule:
		return "module"
	case ScopeClass:
		return "class"
	case ScopeSingletonClass:
		return "singleton-class"
	case ScopeMethod:
		return "method"
	case ScopeBlock:
		return "block"
	default:
		return "unknown"
	}
}

// freshNamespace reports whether a scope of this kind starts a brand new
// local-variable namespace rather than inheriting its enclosing scope's
// variables by reference. A block scope inherits variables from its
// enclosing scope; a method/class/module scope creates a fresh namespace.
func (k ScopeKind) freshNamespace() bool {
	return k != ScopeBlock
}

// Position is a byte offset into a document's source text.
type Position uint32

// Location records where a local variable was first assigned.
type Location struct {
	StartByte, EndByte     uint32
	StartLine, StartColumn uint32
	EndLine, EndColumn     uint32
}

// Scope is a contiguous, byte-addressed lexical region with its own (or
// inherited) local-variable namespace.
type Scope struct {
	ID         int
	Kind       ScopeKind
	StartByte  uint32
	EndByte    uint32
	Parent     int // -1 for the root
	Children   []int

	// Owner is the FQN of the class/module/singleton-class this scope was
	// opened for, set by the Analyzer via Builder.SetOwner. Nil for
	// top-level, method, and block scopes — the Query Layer walks up to the
	// nearest non-nil Owner to find the enclosing nesting stack.
	Owner *fqn.FQN

	// locals maps a local-variable name to the Location of its first
	// assignment within this scope. Block scopes record only the locals
	// first assigned inside them; lookups also search the enclosing scopes up
	// to the nearest fresh-namespace ancestor (see ScopeTree.Locals).
	locals map[string]Location
}

func (s *Scope) Contains(pos Position) bool {
	return uint32(pos) >= s.StartByte && uint32(pos) < s.EndByte
}
