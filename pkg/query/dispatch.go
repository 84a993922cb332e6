package query

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/fqn"
)

// identKind classifies the token under the cursor for dispatch purposes.
type identKind int

const (
	identUnknown identKind = iota
	identLocalVar
	identInstanceVar
	identClassVar
	identGlobalVar
	identConstant
	identMethodCall
)

// identified is the result of classifying the node at a position: which
// dispatch category it falls in, the node itself (for its Location and
// text), the enclosing expression to feed into type inference (the call
// node itself for a method call, the same as node otherwise), and — for a
// method call — its receiver node, if any.
type identified struct {
	kind     identKind
	node     *ts.Node
	expr     *ts.Node
	receiver *ts.Node
}

// constantPathSegments mirrors pkg/analyzer's own helper of the same name.
// Kept as a separate, package-local copy rather than an import of
// pkg/analyzer: the Query Layer must stay decoupled from the indexing passes
// the same way pkg/analyzer itself stays decoupled from pkg/rparser.
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
			return []string{name.Utf8Text(src)}, true
		}
		inner, force := constantPathSegments(scope, src)
		return append(inner, name.Utf8Text(src)), force
	default:
		return nil, false
	}
}

// classify inspects the named node at a byte offset and determines its
// identifier dispatch category. A "call" node classifies as identMethodCall
// with its method-name child as node and its receiver field (if any)
// returned separately; so does any node that is itself the method-name child
// of an enclosing call (checked first, since the cursor usually lands on
// that child rather than the call node spanning the whole expression). A
// bare "identifier" node that is not a call's method name classifies as
// identLocalVar; it is lexically ambiguous with a parenthesis-less,
// argument-less method call on self, so callers that find no local binding
// for it fall back to method-call resolution with an implicit self receiver
// (the language's own disambiguation rule).
func classify(node *ts.Node) identified {
	if node == nil {
		return identified{kind: identUnknown}
	}
	if parent := node.Parent(); parent != nil && parent.Kind() == "call" {
		if method := parent.ChildByFieldName("method"); method != nil &&
			method.StartByte() == node.StartByte() && method.EndByte() == node.EndByte() {
			return identified{kind: identMethodCall, node: method, expr: parent, receiver: parent.ChildByFieldName("receiver")}
		}
	}
	switch node.Kind() {
	case "instance_variable":
		return identified{kind: identInstanceVar, node: node, expr: node}
	case "class_variable":
		return identified{kind: identClassVar, node: node, expr: node}
	case "global_variable":
		return identified{kind: identGlobalVar, node: node, expr: node}
	case "constant", "scope_resolution":
		return identified{kind: identConstant, node: node, expr: node}
	case "identifier":
		return identified{kind: identLocalVar, node: node, expr: node}
	case "call":
		method := node.ChildByFieldName("method")
		if method == nil {
			return identified{kind: identUnknown, node: node, expr: node}
		}
		return identified{kind: identMethodCall, node: method, expr: node, receiver: node.ChildByFieldName("receiver")}
	default:
		return identified{kind: identUnknown, node: node, expr: node}
	}
}

// receiverIsSelf reports whether node denotes an explicit or implicit self
// receiver.
func receiverIsSelf(node *ts.Node, src []byte) bool {
	return node == nil || identifierText(node, src) == "self"
}

func identifierText(node *ts.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return node.Utf8Text(src)
}

// kindForVariable maps an identKind of var category to its fqn.Kind.
func kindForVariable(k identKind) fqn.Kind {
	switch k {
	case identInstanceVar:
		return fqn.KindInstanceVar
	case identClassVar:
		return fqn.KindClassVar
	case identGlobalVar:
		return fqn.KindGlobalVar
	default:
		return fqn.KindInstanceVar
	}
}
