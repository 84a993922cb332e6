// Package fqn implements the canonical fully-qualified name representation
// and the lexical constant-lookup algorithm of the target language (an
// open-class, mixin-based dynamic object-oriented scripting language).
package fqn

import "strings"

// Kind tags the terminal segment of an FQN with what sort of symbol it
// names. Two FQNs with identical segment names but different terminal Kinds
// are distinct (e.g. a class `Foo::Bar` and a constant `Foo::Bar`).
type Kind int

const (
	KindClass Kind = iota
	KindModule
	KindMethod
	KindSingletonMethod
	KindConstant
	KindClassVar
	KindInstanceVar
	KindGlobalVar
	// KindLocalVar tags a completion candidate as a local variable. Locals
	// are lexically scoped and never registered in the Symbol Index under
	// an FQN of their own; this tag exists only so callers that classify by
	// fqn.Kind (e.g. completion item kind) have something to switch on.
	KindLocalVar
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindModule:
		return "module"
	case KindMethod:
		return "method"
	case KindSingletonMethod:
		return "singleton_method"
	case KindConstant:
		return "constant"
	case KindClassVar:
		return "cvar"
	case KindInstanceVar:
		return "ivar"
	case KindGlobalVar:
		return "gvar"
	case KindLocalVar:
		return "lvar"
	default:
		return "unknown"
	}
}

// Segment is one namespace component of an FQN.
type Segment struct {
	Name string
}

// FQN is an ordered sequence of namespace segments plus a terminal name and
// kind tag. The zero value (no segments, no terminal) denotes nothing; use
// TopLevel() for the empty-prefix namespace.
type FQN struct {
	Segments []Segment
	Terminal string
	Kind     Kind
}

// TopLevel returns the FQN denoting the top-level namespace: no segments,
// no terminal. It is only ever used as a lookup root, never as an Entry's
// own FQN (every Entry carries a concrete Terminal).
func TopLevel() FQN {
	return FQN{}
}

// New builds an FQN from an ordered list of namespace names, a terminal
// name, and its kind.
func New(namespace []string, terminal string, kind Kind) FQN {
	segs := make([]Segment, len(namespace))
	for i, n := range namespace {
		segs[i] = Segment{Name: n}
	}
	return FQN{Segments: segs, Terminal: terminal, Kind: kind}
}

// Child returns the FQN for `name` nested directly under f, tagged with
// kind. f's own terminal (if any) becomes a namespace segment.
func (f FQN) Child(name string, kind Kind) FQN {
	segs := make([]Segment, 0, len(f.Segments)+1)
	segs = append(segs, f.Segments...)
	if f.Terminal != "" {
		segs = append(segs, Segment{Name: f.Terminal})
	}
	return FQN{Segments: segs, Terminal: name, Kind: kind}
}

// Equal reports whether f and g denote the same symbol: same segment
// sequence, same terminal name, same kind.
func (f FQN) Equal(g FQN) bool {
	if f.Terminal != g.Terminal || f.Kind != g.Kind {
		return false
	}
	if len(f.Segments) != len(g.Segments) {
		return false
	}
	for i := range f.Segments {
		if f.Segments[i].Name != g.Segments[i].Name {
			return false
		}
	}
	return true
}

// Key is a comparable string encoding of an FQN, suitable as a map key.
// Namespace segments are joined by "::" (the target language's own
// qualifier) and the kind is appended so that e.g. a class and a constant of
// the same name never collide.
type Key string

// Key returns the canonical map key for f.
func (f FQN) Key() Key {
	var b strings.Builder
	for _, s := range f.Segments {
		b.WriteString(s.Name)
		b.WriteString("::")
	}
	b.WriteString(f.Terminal)
	b.WriteByte('#')
	b.WriteString(f.Kind.String())
	return Key(b.String())
}

// PathKey is the map key for f's namespace path — segments plus terminal —
// ignoring Kind. Class/module containers must be found by this key rather
// than by Key(), since the same name path can be reopened first as a class
// reference and later resolved as a module (or vice versa) before the
// definition pass has seen the authoritative kind; container identity is
// the name path alone, never the kind tag.
func (f FQN) PathKey() Key {
	var b strings.Builder
	for _, s := range f.Segments {
		b.WriteString(s.Name)
		b.WriteString("::")
	}
	b.WriteString(f.Terminal)
	return Key(b.String())
}

// String renders the FQN the way the target language's own `::` operator
// would (ignoring Kind, which is not part of source syntax).
func (f FQN) String() string {
	var b strings.Builder
	for _, s := range f.Segments {
		b.WriteString(s.Name)
		b.WriteString("::")
	}
	b.WriteString(f.Terminal)
	return b.String()
}

// Namespace returns the FQN of f's immediate enclosing namespace (i.e. f
// with its terminal popped off and re-tagged as a class/module segment).
// Returns TopLevel() if f has no namespace segments.
func (f FQN) Namespace() FQN {
	if len(f.Segments) == 0 {
		return TopLevel()
	}
	last := f.Segments[len(f.Segments)-1]
	return FQN{Segments: f.Segments[:len(f.Segments)-1], Terminal: last.Name, Kind: KindClass}
}

// IsTopLevel reports whether f is the empty-prefix namespace.
func (f FQN) IsTopLevel() bool {
	return len(f.Segments) == 0 && f.Terminal == ""
}
