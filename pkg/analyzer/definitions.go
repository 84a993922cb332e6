package analyzer

import (
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/stubs"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// constantLiteralTypes maps a literal right-hand-side node kind to the
// built-in class it denotes. A package-local copy of pkg/query's own
// literalTypeNames, kept separate for the same reason pkg/query keeps its
// own copy of constantPathSegments: the Analyzer stays decoupled from the
// Query Layer.
var constantLiteralTypes = map[string]string{
	"integer":       "Integer",
	"float":         "Float",
	"string":        "String",
	"bare_string":   "String",
	"array":         "Array",
	"hash":          "Hash",
	"simple_symbol": "Symbol",
	"symbol":        "Symbol",
	"regex":         "Regexp",
	"range":         "Range",
	"true":          "TrueClass",
	"false":         "FalseClass",
	"nil":           "NilClass",
}

// defWalker carries the state threaded through one definitions-pass walk:
// the source being walked, the document it belongs to, the (possibly nil)
// Symbol Index being populated, and the scope builder accumulating local
// variable bindings. A nil idx means the walk exists only to materialize
// scopes (doccache.ScopeAnalyzer), matching how pkg/doccache reparses far
// more often than the project is (re)indexed.
type defWalker struct {
	src      []byte
	document string
	idx      *symbolindex.Index
	builder  *doccache.Builder
	logger   *slog.Logger
}

// mixins accumulates the include/prepend/extend targets found as direct
// statements of one class/module body, so they can be handed to
// Index.DefineNode once the body has been fully walked.
type mixins struct {
	included  []fqn.FQN
	prepended []fqn.FQN
	extended  []fqn.FQN
}

func (w *defWalker) walkRoot(root *ts.Node) {
	w.walkChildren(root, nil, nil)
}

// walk dispatches a single node by kind, mirroring the cursor-descent style
// of the jsx extractor: recognized kinds get dedicated handling, everything
// else recurses into its children.
func (w *defWalker) walk(node *ts.Node, nesting []fqn.FQN, visibility *symbolindex.Visibility, singletonOwner *fqn.FQN, collected *mixins) {
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
		w.handleMethod(node, nesting, *visibility, singletonOwner)
		return
	case "singleton_method":
		w.handleSingletonMethod(node, nesting, *visibility)
		return
	case "assignment", "operator_assignment":
		w.handleAssignment(node, nesting)
		return
	case "call":
		if w.handleDirectiveCall(node, nesting, visibility, collected) {
			return
		}
	case "identifier":
		w.handleBareVisibility(node, visibility)
		return
	case "block", "do_block":
		w.builder.EnterScope(doccache.ScopeBlock, node.StartByte())
		w.walkChildren(node, nesting, singletonOwner)
		w.builder.ExitScope(node.EndByte())
		return
	}
	w.walkChildren(node, nesting, singletonOwner)
}

// walkChildren iterates node's direct named children as one sequential body,
// tracking a visibility cursor and mixin directives local to that body, and
// returns the mixins collected directly in it (meaningful only when node is
// a class/module body; harmless to discard otherwise).
func (w *defWalker) walkChildren(node *ts.Node, nesting []fqn.FQN, singletonOwner *fqn.FQN) mixins {
	visibility := symbolindex.Public
	var collected mixins
	for i := uint(0); i < node.NamedChildCount(); i++ {
		w.walk(node.NamedChild(i), nesting, &visibility, singletonOwner, &collected)
	}
	return collected
}

func (w *defWalker) handleClass(node *ts.Node, nesting []fqn.FQN) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	segments, forceTop := constantPathSegments(nameNode, w.src)
	if len(segments) == 0 {
		return
	}
	classFQN := w.lexicalFQN(nesting, segments, forceTop, fqn.KindClass)

	var superclassFQN *fqn.FQN
	if sc := node.ChildByFieldName("superclass"); sc != nil {
		if scSegs, scForce := constantPathSegments(sc, w.src); len(scSegs) > 0 {
			f := w.lexicalFQN(nesting, scSegs, scForce, fqn.KindClass)
			superclassFQN = &f
		}
	}

	scopeID := w.builder.EnterScope(doccache.ScopeClass, node.StartByte())
	w.builder.SetOwner(scopeID, classFQN)
	childNesting := appendFQN(nesting, classFQN)
	var m mixins
	if body := node.ChildByFieldName("body"); body != nil {
		m = w.walkChildren(body, childNesting, nil)
	}
	w.builder.ExitScope(node.EndByte())

	if w.idx != nil {
		entry := &symbolindex.Entry{
			FQN:      classFQN,
			Location: w.location(node),
			Doc:      extractDoc(w.src, node.StartByte()),
		}
		w.idx.InsertEntry(entry)
		w.idx.DefineNode(classFQN, symbolindex.NodeClass, w.document, superclassFQN, m.included, m.prepended, m.extended)
	}
}

func (w *defWalker) handleModule(node *ts.Node, nesting []fqn.FQN) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	segments, forceTop := constantPathSegments(nameNode, w.src)
	if len(segments) == 0 {
		return
	}
	moduleFQN := w.lexicalFQN(nesting, segments, forceTop, fqn.KindModule)

	scopeID := w.builder.EnterScope(doccache.ScopeModule, node.StartByte())
	w.builder.SetOwner(scopeID, moduleFQN)
	childNesting := appendFQN(nesting, moduleFQN)
	var m mixins
	if body := node.ChildByFieldName("body"); body != nil {
		m = w.walkChildren(body, childNesting, nil)
	}
	w.builder.ExitScope(node.EndByte())

	if w.idx != nil {
		entry := &symbolindex.Entry{
			FQN:      moduleFQN,
			Location: w.location(node),
			Doc:      extractDoc(w.src, node.StartByte()),
		}
		w.idx.InsertEntry(entry)
		w.idx.DefineNode(moduleFQN, symbolindex.NodeModule, w.document, nil, m.included, m.prepended, m.extended)
	}
}

// handleSingletonClass handles `class << self` / `class << obj`: it does not
// open a new constant namespace, only changes what owner subsequent `def`
// statements in its body are registered against.
func (w *defWalker) handleSingletonClass(node *ts.Node, nesting []fqn.FQN) {
	valueNode := node.ChildByFieldName("value")
	var target *fqn.FQN
	if valueNode != nil {
		if identifierText(valueNode, w.src) == "self" {
			if len(nesting) > 0 {
				t := nesting[len(nesting)-1]
				target = &t
			}
		} else if segs, force := constantPathSegments(valueNode, w.src); len(segs) > 0 {
			t := w.lexicalFQN(nesting, segs, force, fqn.KindClass)
			target = &t
		}
	}

	scopeID := w.builder.EnterScope(doccache.ScopeSingletonClass, node.StartByte())
	if target != nil {
		w.builder.SetOwner(scopeID, *target)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, nesting, target)
	}
	w.builder.ExitScope(node.EndByte())
}

func (w *defWalker) handleMethod(node *ts.Node, nesting []fqn.FQN, visibility symbolindex.Visibility, singletonOwner *fqn.FQN) {
	nameNode := node.ChildByFieldName("name")
	name := identifierText(nameNode, w.src)
	if name == "" {
		return
	}

	var owner *fqn.FQN
	var methodFQN fqn.FQN
	switch {
	case singletonOwner != nil:
		owner = singletonOwner
		methodFQN = singletonOwner.Child(name, fqn.KindSingletonMethod)
	case len(nesting) > 0:
		o := nesting[len(nesting)-1]
		owner = &o
		methodFQN = o.Child(name, fqn.KindMethod)
	default:
		// A `def` with no enclosing class/module and no singleton target is
		// a bare top-level method; it is registered without an Owner rather
		// than inventing one.
		methodFQN = fqn.New(nil, name, fqn.KindMethod)
	}

	w.builder.EnterScope(doccache.ScopeMethod, node.StartByte())
	w.bindParameterLocals(node.ChildByFieldName("parameters"))
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, nesting, nil)
	}
	w.builder.ExitScope(node.EndByte())

	if w.idx != nil {
		params := parseParameters(node.ChildByFieldName("parameters"), w.src)
		doc := extractDoc(w.src, node.StartByte())
		entry := &symbolindex.Entry{
			FQN:        methodFQN,
			Location:   w.location(node),
			Visibility: visibility,
			Params:     params,
			ReturnType: doc.Returns,
			Doc:        doc,
			Owner:      owner,
		}
		w.idx.InsertEntry(entry)
	}
}

// handleSingletonMethod handles `def self.foo` / `def Receiver.foo` written
// directly (as distinct from a `class << self` body full of plain `method`
// nodes, handled via handleSingletonClass's singletonOwner threading).
func (w *defWalker) handleSingletonMethod(node *ts.Node, nesting []fqn.FQN, visibility symbolindex.Visibility) {
	nameNode := node.ChildByFieldName("name")
	name := identifierText(nameNode, w.src)
	if name == "" {
		return
	}

	var owner fqn.FQN
	objectNode := node.ChildByFieldName("object")
	if objectNode == nil || identifierText(objectNode, w.src) == "self" {
		if len(nesting) > 0 {
			owner = nesting[len(nesting)-1]
		}
	} else if segs, force := constantPathSegments(objectNode, w.src); len(segs) > 0 {
		owner = w.lexicalFQN(nesting, segs, force, fqn.KindClass)
	} else if len(nesting) > 0 {
		owner = nesting[len(nesting)-1]
	}

	methodFQN := owner.Child(name, fqn.KindSingletonMethod)

	w.builder.EnterScope(doccache.ScopeMethod, node.StartByte())
	w.bindParameterLocals(node.ChildByFieldName("parameters"))
	if body := node.ChildByFieldName("body"); body != nil {
		w.walkChildren(body, nesting, nil)
	}
	w.builder.ExitScope(node.EndByte())

	if w.idx != nil {
		params := parseParameters(node.ChildByFieldName("parameters"), w.src)
		doc := extractDoc(w.src, node.StartByte())
		entry := &symbolindex.Entry{
			FQN:        methodFQN,
			Location:   w.location(node),
			Visibility: visibility,
			Params:     params,
			ReturnType: doc.Returns,
			Doc:        doc,
			Owner:      &owner,
		}
		w.idx.InsertEntry(entry)
	}
}

// handleAssignment binds a local variable's first-assignment Location, or
// (for a constant target) registers a constant Entry. The right-hand side is
// still walked generically afterwards, since `Foo = Class.new do ... end`
// can itself contain definitions and nested scopes.
func (w *defWalker) handleAssignment(node *ts.Node, nesting []fqn.FQN) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	if left != nil {
		switch left.Kind() {
		case "identifier":
			w.builder.AssignLocal(left.Utf8Text(w.src), w.docLoc(left))
		case "constant", "scope_resolution":
			w.defineConstant(left, node, nesting)
		case "left_assignment_list", "destructured_left_assignment", "rest_assignment":
			w.bindDestructuredTargets(left)
		}
	}

	if right != nil {
		w.walkExpr(right, nesting, nil)
	}
}

func (w *defWalker) bindDestructuredTargets(node *ts.Node) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "identifier":
			w.builder.AssignLocal(child.Utf8Text(w.src), w.docLoc(child))
		case "left_assignment_list", "destructured_left_assignment", "rest_assignment", "splat_parameter":
			w.bindDestructuredTargets(child)
		}
	}
}

func (w *defWalker) defineConstant(left, assignment *ts.Node, nesting []fqn.FQN) {
	segments, forceTop := constantPathSegments(left, w.src)
	if len(segments) == 0 {
		return
	}
	target := w.lexicalFQN(nesting, segments, forceTop, fqn.KindConstant)
	if w.idx == nil {
		return
	}
	entry := &symbolindex.Entry{
		FQN:      target,
		Location: w.location(assignment),
		Doc:      extractDoc(w.src, assignment.StartByte()),
	}
	if right := assignment.ChildByFieldName("right"); right != nil && !stubs.IsPlaceholderValue(right.Utf8Text(w.src)) {
		entry.ValueType = constantLiteralTypes[right.Kind()]
	}
	w.idx.InsertEntry(entry)
}

// handleDirectiveCall recognizes the fixed set of bodies-direct-statement
// calls that change indexing state rather than denoting an ordinary method
// call: bare `private`/`protected`/`public` (visibility cursor) and
// `include`/`prepend`/`extend` (mixin edges). Reports whether it consumed
// the call; callers still generically walk arguments it did not recognize.
func (w *defWalker) handleDirectiveCall(node *ts.Node, nesting []fqn.FQN, visibility *symbolindex.Visibility, collected *mixins) bool {
	methodNode := node.ChildByFieldName("method")
	name := identifierText(methodNode, w.src)
	argsNode := node.ChildByFieldName("arguments")

	switch name {
	case "private", "protected", "public":
		if argsNode == nil || argsNode.NamedChildCount() == 0 {
			*visibility = visibilityFor(name)
			return true
		}
		return false
	case "include", "prepend", "extend":
		if collected == nil || argsNode == nil {
			return true
		}
		for i := uint(0); i < argsNode.NamedChildCount(); i++ {
			arg := argsNode.NamedChild(i)
			segs, force := constantPathSegments(arg, w.src)
			if len(segs) == 0 {
				continue
			}
			target := w.lexicalFQN(nesting, segs, force, fqn.KindClass)
			switch name {
			case "include":
				collected.included = append(collected.included, target)
			case "prepend":
				collected.prepended = append(collected.prepended, target)
			case "extend":
				collected.extended = append(collected.extended, target)
			}
		}
		return true
	default:
		return false
	}
}

func (w *defWalker) handleBareVisibility(node *ts.Node, visibility *symbolindex.Visibility) {
	switch identifierText(node, w.src) {
	case "private":
		*visibility = symbolindex.Private
	case "protected":
		*visibility = symbolindex.Protected
	case "public":
		*visibility = symbolindex.Public
	}
}

func visibilityFor(name string) symbolindex.Visibility {
	switch name {
	case "private":
		return symbolindex.Private
	case "protected":
		return symbolindex.Protected
	default:
		return symbolindex.Public
	}
}

// walkExpr recurses into an arbitrary subexpression with a fresh, throwaway
// visibility cursor and mixin collector — used where the surrounding
// sequence isn't itself a class/module body (an assignment's right-hand
// side, a call's receiver, etc.) but nested blocks/defs still need scope
// tracking.
func (w *defWalker) walkExpr(node *ts.Node, nesting []fqn.FQN, singletonOwner *fqn.FQN) {
	v := symbolindex.Public
	var m mixins
	w.walk(node, nesting, &v, singletonOwner, &m)
}

func (w *defWalker) bindParameterLocals(paramsNode *ts.Node) {
	if paramsNode == nil {
		return
	}
	for i := uint(0); i < paramsNode.NamedChildCount(); i++ {
		nameNode := paramNameNode(paramsNode.NamedChild(i))
		if nameNode == nil {
			continue
		}
		w.builder.AssignLocal(nameNode.Utf8Text(w.src), w.docLoc(nameNode))
	}
}

func paramNameNode(node *ts.Node) *ts.Node {
	switch node.Kind() {
	case "identifier":
		return node
	case "optional_parameter", "keyword_parameter", "block_parameter":
		return node.ChildByFieldName("name")
	case "splat_parameter", "rest_parameter", "hash_splat_parameter", "double_splat_parameter":
		if n := node.ChildByFieldName("name"); n != nil {
			return n
		}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if c := node.NamedChild(i); c.Kind() == "identifier" {
				return c
			}
		}
		return nil
	default:
		return nil
	}
}

// lexicalFQN delegates to resolveLexicalFQN (shared with the references
// pass).
func (w *defWalker) lexicalFQN(nesting []fqn.FQN, segments []string, forceTop bool, kind fqn.Kind) fqn.FQN {
	return resolveLexicalFQN(nesting, segments, forceTop, kind)
}

func appendFQN(nesting []fqn.FQN, f fqn.FQN) []fqn.FQN {
	out := make([]fqn.FQN, len(nesting)+1)
	copy(out, nesting)
	out[len(nesting)] = f
	return out
}

func (w *defWalker) location(node *ts.Node) symbolindex.Location {
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

func (w *defWalker) docLoc(node *ts.Node) doccache.Location {
	start, end := node.StartPosition(), node.EndPosition()
	return doccache.Location{
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
		StartLine:   uint32(start.Row) + 1,
		StartColumn: uint32(start.Column) + 1,
		EndLine:     uint32(end.Row) + 1,
		EndColumn:   uint32(end.Column) + 1,
	}
}
