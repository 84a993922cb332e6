package analyzer

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/fqn"
)

// constantPathSegments reads a `constant` or `scope_resolution` node into its
// ordered bare-name segments, plus whether the path was written with a
// leading `::` (forcing top-level lookup). A bare `constant` node yields a
// single segment.
func constantPathSegments(node *ts.Node, src []byte) (segments []string, forceTopLevel bool) {
	switch node.Kind() {
	case "constant":
		return []string{node.Utf8Text(src)}, false
	case "scope_resolution":
		scope := node.ChildByFieldName("scope")
		name := node.ChildByFieldName("name")
		if name == nil {
			return nil, false
		}
		if scope == nil {
			// `::Foo` — leading-colon form, no scope child.
			return []string{name.Utf8Text(src)}, true
		}
		inner, force := constantPathSegments(scope, src)
		return append(inner, name.Utf8Text(src)), force
	default:
		return nil, false
	}
}

// buildFQN turns an ordered list of namespace segments (as found lexically
// in source, not yet resolved) plus a terminal name into an FQN relative to
// the current nesting, by appending each segment as a Child() of the
// previous one starting from base.
func buildFQN(base fqn.FQN, segments []string, terminal string, kind fqn.Kind) fqn.FQN {
	cur := base
	for _, seg := range segments {
		cur = cur.Child(seg, fqn.KindClass)
	}
	return cur.Child(terminal, kind)
}

// splitQualifiedPath separates a dotted/scoped constant path into its
// leading namespace segments and final terminal name, e.g. ["A", "B"], "C"
// for `A::B::C`.
func splitQualifiedPath(full []string) (namespace []string, terminal string) {
	if len(full) == 0 {
		return nil, ""
	}
	return full[:len(full)-1], full[len(full)-1]
}

// resolveLexicalFQN resolves a lexically-written constant path to a concrete
// FQN. A compound path (`A::B`) or one with a leading `::` is anchored at
// the top level; a single bare name is anchored under the current nesting,
// matching how the target language itself distinguishes a qualified
// reference from a lookup relative to lexical scope. Shared by both the
// definitions and references passes.
func resolveLexicalFQN(nesting []fqn.FQN, segments []string, forceTop bool, kind fqn.Kind) fqn.FQN {
	ns, terminal := splitQualifiedPath(segments)
	var base fqn.FQN
	switch {
	case forceTop, len(segments) > 1:
		base = fqn.TopLevel()
	case len(nesting) > 0:
		base = nesting[len(nesting)-1]
	default:
		base = fqn.TopLevel()
	}
	return buildFQN(base, ns, terminal, kind)
}

// identifierText is a small guard against nil nodes, used throughout the
// walker where a field is optional.
func identifierText(node *ts.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return strings.TrimSpace(node.Utf8Text(src))
}
