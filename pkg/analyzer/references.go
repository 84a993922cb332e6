package analyzer

import (
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// refWalker carries the state threaded through one references-pass walk. It
// rebuilds the same lexical nesting stack as defWalker while re-walking the
// tree, so it must run after every file in the project has completed its
// definitions pass — otherwise fqn.ResolveQualified would see a partial
// Symbol Index and most references would silently fail to resolve.
type refWalker struct {
	src      []byte
	document string
	idx      *symbolindex.Index
	logger   *slog.Logger
}

func (w *refWalker) walk(node *ts.Node, nesting []fqn.FQN, singletonOwner *fqn.FQN) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "class":
		w.handleClass(node, nesting)
		return
	case "module":
		w.handleModule(node, nesting)
		return
	case "singleton_class":
		w.handleSingletonClass(node, nesting)
		return
	case "method":
		w.handleMethod(node, nesting, singletonOwner)
		return
	case "singleton_method":
		w.handleSingletonMethod(node, nesting)
		return
	case "assignment", "operator_assignment":
		w.handleAssignment(node, nesting)
		return
	case "call":
		w.handleCall(node, nesting)
	case "constant", "scope_resolution":
		w.handleConstantRead(node, nesting)
		return
	case "instance_variable":
		w.recordRef(node, symbolindex.RefIvarRead, fqn.KindInstanceVar, nesting)
		return
	case "class_variable":
		w.recordRef(node, symbolindex.RefCvarRead, fqn.KindClassVar, nesting)
		return
	case "global_variable":
		w.recordRef(node, symbolindex.RefGvarRead, fqn.KindGlobalVar, nesting)
		return
	}
	w.walkChildren(node, nesting, singletonOwner)
}

func (w *refWalker) walkChildren(node *ts.Node, nesting []fqn.FQN, singletonOwner *fqn.FQN) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		w.walk(node.NamedChild(i), nesting, singletonOwner)
	}
}

func (w *refWalker) handleClass(node *ts.Node, nesting []fqn.FQN) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		w.walkChildren(node, nesting, nil)
		return
	}
	segments, forceTop := constantPathSegments(nameNode, w.src)
	if len(segments) == 0 {
		return
	}
	classFQN := resolveLexicalFQN(nesting, segments, forceTop, fqn.KindClass)

	if sc := node.ChildByFieldName("superclass"); sc != nil {
		if scSegs, scForce := constantPathSegments(sc, w.src); len(scSegs) > 0 {
			w.recordEdgeTarget(sc, scSegs, scForce, nesting, symbolindex.RefInheritTarget)
		} else {
			w.walk(sc, nesting, nil)
		}
	}

	childNesting := appendFQN(nesting, classFQN)
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, childNesting, nil)
	}
}

func (w *refWalker) handleModule(node *ts.Node, nesting []fqn.FQN) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		w.walkChildren(node, nesting, nil)
		return
	}
	segments, forceTop := constantPathSegments(nameNode, w.src)
	if len(segments) == 0 {
		return
	}
	moduleFQN := resolveLexicalFQN(nesting, segments, forceTop, fqn.KindModule)

	childNesting := appendFQN(nesting, moduleFQN)
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, childNesting, nil)
	}
}

func (w *refWalker) handleSingletonClass(node *ts.Node, nesting []fqn.FQN) {
	valueNode := node.ChildByFieldName("value")
	var target *fqn.FQN
	if valueNode != nil {
		if identifierText(valueNode, w.src) == "self" {
			if len(nesting) > 0 {
				t := nesting[len(nesting)-1]
				target = &t
			}
		} else if segs, force := constantPathSegments(valueNode, w.src); len(segs) > 0 {
			t := resolveLexicalFQN(nesting, segs, force, fqn.KindClass)
			target = &t
		}
	}
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, nesting, target)
	}
}

func (w *refWalker) handleMethod(node *ts.Node, nesting []fqn.FQN, singletonOwner *fqn.FQN) {
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, nesting, nil)
	}
	_ = singletonOwner
}

func (w *refWalker) handleSingletonMethod(node *ts.Node, nesting []fqn.FQN) {
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, nesting, nil)
	}
}

func (w *refWalker) handleAssignment(node *ts.Node, nesting []fqn.FQN) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	if left != nil {
		switch left.Kind() {
		case "instance_variable":
			w.recordRef(left, symbolindex.RefIvarWrite, fqn.KindInstanceVar, nesting)
		case "class_variable":
			w.recordRef(left, symbolindex.RefCvarWrite, fqn.KindClassVar, nesting)
		case "global_variable":
			w.recordRef(left, symbolindex.RefGvarWrite, fqn.KindGlobalVar, nesting)
		case "constant", "scope_resolution":
			w.recordConstantRef(left, symbolindex.RefConstAssign, nesting)
		default:
			w.walk(left, nesting, nil)
		}
	}
	if right != nil {
		w.walk(right, nesting, nil)
	}
}

// directiveRefKindFor maps include/prepend/extend to the ReferenceKind
// recorded at each of their arguments. handleDirectiveCallRefs is the only
// producer of these three kinds; mirrors defWalker.handleDirectiveCall's
// name set in definitions.go.
func directiveRefKindFor(name string) (symbolindex.ReferenceKind, bool) {
	switch name {
	case "include":
		return symbolindex.RefIncludeTarget, true
	case "prepend":
		return symbolindex.RefPrependTarget, true
	case "extend":
		return symbolindex.RefExtendTarget, true
	default:
		return 0, false
	}
}

// handleDirectiveCallRefs recognizes the same bodies-direct-statement
// directive calls as defWalker.handleDirectiveCall — bare
// private/protected/public and include/prepend/extend — and records a
// Reference at each include/prepend/extend argument instead of falling
// through to handleCall's receiver-less RefCall branch, which would
// otherwise record a bogus call target of the form
// `<enclosing class>#include`. private/protected/public carry no reference
// of their own; they are recognized only to prevent that same
// misclassification. Reports whether it consumed the call.
func (w *refWalker) handleDirectiveCallRefs(node *ts.Node, name string, nesting []fqn.FQN) bool {
	switch name {
	case "private", "protected", "public":
		return true
	case "include", "prepend", "extend":
		kind, _ := directiveRefKindFor(name)
		argsNode := node.ChildByFieldName("arguments")
		if argsNode == nil {
			return true
		}
		for i := uint(0); i < argsNode.NamedChildCount(); i++ {
			arg := argsNode.NamedChild(i)
			segs, force := constantPathSegments(arg, w.src)
			if len(segs) == 0 {
				continue
			}
			w.recordEdgeTarget(arg, segs, force, nesting, kind)
		}
		return true
	default:
		return false
	}
}

// handleCall records a RefCall only when the receiver is resolvable: no
// receiver or an explicit `self` (against the current owner), or a constant
// receiver (against its resolved singleton method). Calls on a receiver of
// unknown type are left unrecorded — full receiver-type inference belongs to
// the query layer's bounded inference, not the references pass.
func (w *refWalker) handleCall(node *ts.Node, nesting []fqn.FQN) {
	methodNode := node.ChildByFieldName("method")
	name := identifierText(methodNode, w.src)
	if name == "" {
		return
	}
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil && w.handleDirectiveCallRefs(node, name, nesting) {
		return
	}

	var target fqn.FQN
	resolved := false
	switch {
	case receiver == nil || identifierText(receiver, w.src) == "self":
		if len(nesting) > 0 {
			target = nesting[len(nesting)-1].Child(name, fqn.KindMethod)
		} else {
			target = fqn.New(nil, name, fqn.KindMethod)
		}
		resolved = true
	case receiver.Kind() == "constant" || receiver.Kind() == "scope_resolution":
		segs, force := constantPathSegments(receiver, w.src)
		if len(segs) > 0 {
			if matches, ok := fqn.ResolveQualified(w.idx, segs, nesting, nil, force); ok && len(matches) > 0 {
				target = matches[0].Child(name, fqn.KindSingletonMethod)
				resolved = true
			}
		}
	}
	if resolved {
		w.idx.AddReference(target, &symbolindex.Reference{
			Target:   target,
			Location: w.location(methodNode),
			Kind:     symbolindex.RefCall,
		})
	}
}

func (w *refWalker) handleConstantRead(node *ts.Node, nesting []fqn.FQN) {
	w.recordConstantRef(node, symbolindex.RefConstantRead, nesting)
}

// recordConstantRef resolves node's constant path against the current
// Symbol Index and records a Reference at the first match. Tie-breaking
// among open-class candidates (kind rank, current-document-first, Location
// start) is the query layer's responsibility at read time; the references
// pass only needs one resolvable target to link the use-site to.
func (w *refWalker) recordConstantRef(node *ts.Node, kind symbolindex.ReferenceKind, nesting []fqn.FQN) {
	segments, forceTop := constantPathSegments(node, w.src)
	if len(segments) == 0 {
		return
	}
	matches, ok := fqn.ResolveQualified(w.idx, segments, nesting, nil, forceTop)
	if !ok || len(matches) == 0 {
		return
	}
	target := matches[0]
	w.idx.AddReference(target, &symbolindex.Reference{
		Target:   target,
		Location: w.location(node),
		Kind:     kind,
	})
}

func (w *refWalker) recordEdgeTarget(node *ts.Node, segments []string, forceTop bool, nesting []fqn.FQN, kind symbolindex.ReferenceKind) {
	target := resolveLexicalFQN(nesting, segments, forceTop, fqn.KindClass)
	w.idx.AddReference(target, &symbolindex.Reference{
		Target:   target,
		Location: w.location(node),
		Kind:     kind,
	})
}

func (w *refWalker) recordRef(node *ts.Node, kind symbolindex.ReferenceKind, fqnKind fqn.Kind, nesting []fqn.FQN) {
	name := node.Utf8Text(w.src)
	var target fqn.FQN
	switch {
	case fqnKind == fqn.KindGlobalVar:
		target = fqn.New(nil, name, fqnKind)
	case len(nesting) > 0:
		target = nesting[len(nesting)-1].Child(name, fqnKind)
	default:
		target = fqn.New(nil, name, fqnKind)
	}
	w.idx.AddReference(target, &symbolindex.Reference{
		Target:   target,
		Location: w.location(node),
		Kind:     kind,
	})
}

func (w *refWalker) location(node *ts.Node) symbolindex.Location {
	start, end := node.StartPosition(), node.EndPosition()
	return symbolindex.Location{
		Document:    w.document,
		StartLine:   uint32(start.Row) + 1,
		StartColumn: uint32(start.Column) + 1,
		EndLine:     uint32(end.Row) + 1,
		EndColumn:   uint32(end.Column) + 1,
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}
