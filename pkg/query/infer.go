package query

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// literalTypeNames maps a literal expression node kind to the built-in class
// it denotes.
var literalTypeNames = map[string]string{
	"integer":        "Integer",
	"float":          "Float",
	"string":         "String",
	"bare_string":    "String",
	"array":          "Array",
	"hash":           "Hash",
	"simple_symbol":  "Symbol",
	"symbol":         "Symbol",
	"regex":          "Regexp",
	"range":          "Range",
	"true":           "TrueClass",
	"false":          "FalseClass",
	"nil":            "NilClass",
}

func literalType(kind string) (fqn.FQN, bool) {
	name, ok := literalTypeNames[kind]
	if !ok {
		return fqn.FQN{}, false
	}
	return fqn.New(nil, name, fqn.KindClass), true
}

// inferType implements the bounded receiver-type inference rules. node is
// the expression to infer a type for; nesting is the lexical
// nesting stack at node's position, used to resolve `X.new` constant paths
// and self receivers. No type crosses a method boundary via dataflow: a
// local or instance variable's type comes only from its own first/most-
// recent assignment expression, never from tracing a value through a call.
func (l *Layer) inferType(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) Type {
	if node == nil {
		return Type{}
	}
	if t, ok := literalType(node.Kind()); ok {
		return Type{FQN: t, Known: true}
	}

	switch node.Kind() {
	case "call":
		return l.inferCallType(snap, node, nesting)
	case "identifier":
		if scope := snap.Scopes.ScopeAt(doccache.Position(node.StartByte())); scope != nil {
			if _, ok := snap.Scopes.Locals(scope.ID, identifierText(node, snap.Text)); ok {
				return l.inferLocalVarType(snap, node, nesting)
			}
		}
		return l.inferBareCallType(snap, node, nesting)
	case "instance_variable":
		return l.inferInstanceVarType(snap, node, nesting)
	case "constant", "scope_resolution":
		return l.inferConstantType(snap, node, nesting)
	}
	return Type{}
}

// inferConstantType resolves a constant reference to its declared value
// type when its Entry recorded one (a literal right-hand side at its
// definition site), and otherwise to the constant's own FQN when it denotes
// a class or module — referring to `Dog` names the class itself, so a
// chained call like `Dog.new` can resolve its receiver the same way an
// explicit-receiver call does.
func (l *Layer) inferConstantType(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) Type {
	segments, forceTop := constantPathSegments(node, snap.Text)
	if len(segments) == 0 {
		return Type{}
	}
	ancestors := l.ancestorsForNesting(nesting)
	matches, ok := fqn.ResolveQualified(l.idx, segments, nesting, ancestors, forceTop)
	if !ok || len(matches) == 0 {
		return Type{}
	}
	target := matches[0]
	for _, e := range l.idx.Lookup(target, nil) {
		if e.ValueType != "" {
			return Type{FQN: fqn.New(nil, e.ValueType, fqn.KindClass), Known: true}
		}
	}
	if target.Kind == fqn.KindClass || target.Kind == fqn.KindModule {
		return Type{FQN: target, Known: true}
	}
	return Type{}
}

// inferCallType handles `X.new`, an implicit/explicit self receiver, and
// chained calls (left-to-right propagation via the receiver's own inferred
// type and its declared return type along the ancestor chain).
func (l *Layer) inferCallType(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) Type {
	method := node.ChildByFieldName("method")
	name := identifierText(method, snap.Text)
	receiver := node.ChildByFieldName("receiver")

	if name == "new" && receiver != nil {
		if segs, force := constantPathSegments(receiver, snap.Text); len(segs) > 0 {
			if matches, ok := fqn.ResolveQualified(l.idx, segs, nesting, nil, force); ok && len(matches) > 0 {
				return Type{FQN: matches[0], Known: true}
			}
		}
		return Type{}
	}

	var recvType Type
	if receiverIsSelf(receiver, snap.Text) {
		owner, ok := snap.Scopes.InnermostOwner(doccache.Position(node.StartByte()))
		if !ok {
			return Type{}
		}
		recvType = Type{FQN: owner, Known: true}
	} else {
		recvType = l.inferType(snap, receiver, nesting)
	}
	if !recvType.Known {
		return Type{}
	}

	for _, ancestor := range l.resolver.Resolve(recvType.FQN) {
		for _, e := range l.idx.Lookup(ancestor.Child(name, fqn.KindMethod), nil) {
			if e.ReturnType != "" {
				return Type{FQN: fqn.New(nil, e.ReturnType, fqn.KindClass), Known: true}
			}
		}
	}
	return Type{}
}

// inferBareCallType handles a parenthesis-less, argument-less method call
// written as a bare identifier with no local binding: an implicit self
// receiver, looked up along self's ancestor chain the same way
// inferCallType resolves a self-receiver call.
func (l *Layer) inferBareCallType(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) Type {
	owner, ok := snap.Scopes.InnermostOwner(doccache.Position(node.StartByte()))
	if !ok {
		return Type{}
	}
	name := identifierText(node, snap.Text)
	for _, a := range l.resolver.Resolve(owner) {
		for _, e := range l.idx.Lookup(a.Child(name, fqn.KindMethod), nil) {
			if e.ReturnType != "" {
				return Type{FQN: fqn.New(nil, e.ReturnType, fqn.KindClass), Known: true}
			}
		}
	}
	return Type{}
}

// inferLocalVarType resolves node (an identifier reference) to its
// first-assignment Location via the scope tree, then infers the type of
// that assignment's right-hand side.
func (l *Layer) inferLocalVarType(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) Type {
	scope := snap.Scopes.ScopeAt(doccache.Position(node.StartByte()))
	if scope == nil {
		return Type{}
	}
	loc, ok := snap.Scopes.Locals(scope.ID, identifierText(node, snap.Text))
	if !ok {
		return Type{}
	}
	right := rightHandSideOfAssignmentAt(nodeAt(snap.Tree.RootNode(), loc.StartByte))
	if right == nil {
		return Type{}
	}
	return l.inferType(snap, right, nesting)
}

// inferInstanceVarType resolves node (an instance_variable reference) to the
// most recent write recorded against it within the enclosing class, in the
// current document, and infers the type of that write's right-hand side.
// Declared-type documentation tags are not consulted: the indexing passes
// capture Doc tags only on method/class/module Entries, not on bare ivar
// assignments, so there is no declared-type source to read for this case.
func (l *Layer) inferInstanceVarType(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) Type {
	owner, ok := snap.Scopes.InnermostOwner(doccache.Position(node.StartByte()))
	if !ok {
		return Type{}
	}
	target := owner.Child(identifierText(node, snap.Text), fqn.KindInstanceVar)

	var latest *symbolindex.Reference
	for _, r := range l.idx.ReferencesTo(target) {
		if r.Kind != symbolindex.RefIvarWrite || r.Location.Document != snap.URI {
			continue
		}
		if latest == nil || r.Location.StartByte > latest.Location.StartByte {
			latest = r
		}
	}
	if latest == nil {
		return Type{}
	}
	right := rightHandSideOfAssignmentAt(nodeAt(snap.Tree.RootNode(), latest.Location.StartByte))
	if right == nil {
		return Type{}
	}
	return l.inferType(snap, right, nesting)
}

// rightHandSideOfAssignmentAt walks up from node (typically the assignment
// target itself, as recorded by the Location stored at definition time) to
// the nearest enclosing assignment/operator_assignment and returns its
// right-hand side.
func rightHandSideOfAssignmentAt(node *ts.Node) *ts.Node {
	for n := node; n != nil; n = n.Parent() {
		if n.Kind() == "assignment" || n.Kind() == "operator_assignment" {
			return n.ChildByFieldName("right")
		}
	}
	return nil
}
