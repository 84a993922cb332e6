package query

import (
	"fmt"
	"sort"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// writeRefKindFor maps a variable fqn.Kind to the Reference kind recording
// its writes.
func writeRefKindFor(k fqn.Kind) symbolindex.ReferenceKind {
	switch k {
	case fqn.KindClassVar:
		return symbolindex.RefCvarWrite
	case fqn.KindGlobalVar:
		return symbolindex.RefGvarWrite
	default:
		return symbolindex.RefIvarWrite
	}
}

func (l *Layer) writeLocations(target fqn.FQN, kind symbolindex.ReferenceKind) []symbolindex.Location {
	var out []symbolindex.Location
	for _, r := range l.idx.ReferencesTo(target) {
		if r.Kind == kind {
			out = append(out, r.Location)
		}
	}
	return out
}

// ancestorsForNesting returns the linearized ancestor chain of the innermost
// enclosing class/module, or nil at top level.
func (l *Layer) ancestorsForNesting(nesting []fqn.FQN) []fqn.FQN {
	if len(nesting) == 0 {
		return nil
	}
	return l.resolver.Resolve(nesting[len(nesting)-1])
}

// entriesAndLocations resolves id to the Entries (where the dispatch kind
// has them) and raw Locations (for local/instance/class/global variables,
// which are tracked only as reference write-sites, never as Entries) it
// denotes at the cursor.
func (l *Layer) entriesAndLocations(uri string, snap doccache.Snapshot, id identified, nesting []fqn.FQN) ([]*symbolindex.Entry, []symbolindex.Location) {
	switch id.kind {
	case identLocalVar:
		if scope := snap.Scopes.ScopeAt(doccache.Position(id.node.StartByte())); scope != nil {
			if loc, ok := snap.Scopes.Locals(scope.ID, identifierText(id.node, snap.Text)); ok {
				return nil, []symbolindex.Location{docLocToIndexLocation(uri, loc)}
			}
		}
		// No local binding found: a bare identifier with no assignment in
		// scope is a parenthesis-less, argument-less method call on an
		// implicit self (the language's own disambiguation rule).
		return l.definitionsForMethodCall(uri, snap, identified{kind: identMethodCall, node: id.node}, nesting)

	case identInstanceVar, identClassVar, identGlobalVar:
		return nil, l.definitionsForVar(uri, snap, id, nesting)

	case identConstant:
		return l.definitionsForConstant(snap, id.node, nesting)

	case identMethodCall:
		return l.definitionsForMethodCall(uri, snap, id, nesting)

	default:
		return nil, nil
	}
}

// definitionsForVar implements the Instance/class/global-variable dispatch
// rule: exact-name lookup against write-site references, walking the
// enclosing class's ancestor chain for instance variables until an owner
// with a recorded write is found.
func (l *Layer) definitionsForVar(uri string, snap doccache.Snapshot, id identified, nesting []fqn.FQN) []symbolindex.Location {
	name := identifierText(id.node, snap.Text)
	kind := kindForVariable(id.kind)
	writeKind := writeRefKindFor(kind)

	if kind == fqn.KindInstanceVar {
		owner, ok := snap.Scopes.InnermostOwner(doccache.Position(id.node.StartByte()))
		if !ok {
			return nil
		}
		for _, a := range l.resolver.Resolve(owner) {
			if locs := l.writeLocations(a.Child(name, fqn.KindInstanceVar), writeKind); len(locs) > 0 {
				return locs
			}
		}
		return nil
	}

	var target fqn.FQN
	switch {
	case kind == fqn.KindGlobalVar:
		target = fqn.New(nil, name, kind)
	case len(nesting) > 0:
		target = nesting[len(nesting)-1].Child(name, kind)
	default:
		target = fqn.New(nil, name, kind)
	}
	return l.writeLocations(target, writeKind)
}

// definitionsForConstant implements the Constant dispatch rule: the lookup
// algorithm of pkg/fqn using the enclosing nesting stack and ancestor chain.
func (l *Layer) definitionsForConstant(snap doccache.Snapshot, node *ts.Node, nesting []fqn.FQN) ([]*symbolindex.Entry, []symbolindex.Location) {
	segments, forceTop := constantPathSegments(node, snap.Text)
	if len(segments) == 0 {
		return nil, nil
	}
	ancestors := l.ancestorsForNesting(nesting)
	matches, ok := fqn.ResolveQualified(l.idx, segments, nesting, ancestors, forceTop)
	if !ok {
		return nil, nil
	}
	var entries []*symbolindex.Entry
	for _, m := range matches {
		entries = append(entries, l.idx.Lookup(m, nil)...)
	}
	return entries, nil
}

// definitionsForMethodCall implements the Method call dispatch rule: infer
// the receiver type, walk its ancestor chain in order, return the first
// chain member's owned Entry with a matching name; when the receiver type
// is unknown, fall back to every Entry for that method name across the
// index, ranked by current-file-first then alphabetically.
func (l *Layer) definitionsForMethodCall(uri string, snap doccache.Snapshot, id identified, nesting []fqn.FQN) ([]*symbolindex.Entry, []symbolindex.Location) {
	name := identifierText(id.node, snap.Text)

	if receiverIsSelf(id.receiver, snap.Text) {
		owner, ok := snap.Scopes.InnermostOwner(doccache.Position(id.node.StartByte()))
		if ok {
			if entries := l.firstOwnedEntry(owner, name); len(entries) > 0 {
				return entries, nil
			}
		}
	} else if id.receiver.Kind() == "constant" || id.receiver.Kind() == "scope_resolution" {
		segs, force := constantPathSegments(id.receiver, snap.Text)
		if len(segs) > 0 {
			ancestors := l.ancestorsForNesting(nesting)
			if matches, ok := fqn.ResolveQualified(l.idx, segs, nesting, ancestors, force); ok && len(matches) > 0 {
				for _, chainEntry := range l.resolver.Resolve(matches[0]) {
					if entries := l.idx.Lookup(chainEntry.Child(name, fqn.KindSingletonMethod), nil); len(entries) > 0 {
						return entries, nil
					}
				}
			}
		}
	} else {
		recvType := l.inferType(snap, id.receiver, nesting)
		if recvType.Known {
			if entries := l.firstOwnedEntry(recvType.FQN, name); len(entries) > 0 {
				return entries, nil
			}
		}
	}

	matches := l.idx.SearchMethodsByName(name)
	var entries []*symbolindex.Entry
	for _, m := range matches {
		entries = append(entries, l.idx.Lookup(m, nil)...)
	}
	return rankByCurrentFileThenAlphabetic(uri, entries), nil
}

// firstOwnedEntry walks receiverType's ancestor chain in order and returns
// the first chain member's own instance-method Entry named name, if any.
func (l *Layer) firstOwnedEntry(receiverType fqn.FQN, name string) []*symbolindex.Entry {
	for _, a := range l.resolver.Resolve(receiverType) {
		if entries := l.idx.Lookup(a.Child(name, fqn.KindMethod), nil); len(entries) > 0 {
			return entries
		}
	}
	return nil
}

func rankByCurrentFileThenAlphabetic(uri string, entries []*symbolindex.Entry) []*symbolindex.Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aCur := a.Location.Document == uri
		bCur := b.Location.Document == uri
		if aCur != bCur {
			return aCur
		}
		return a.FQN.String() < b.FQN.String()
	})
	return entries
}

func entryLocations(uri string, entries []*symbolindex.Entry) []symbolindex.Location {
	out := make([]symbolindex.Location, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Location)
	}
	return out
}

// FindDefinitionsAtPosition implements find_definitions_at_position.
func (l *Layer) FindDefinitionsAtPosition(uri string, pos Position) ([]symbolindex.Location, error) {
	snap, offset, err := l.snapshotAt(uri, pos)
	if err != nil {
		return nil, err
	}
	node := nodeAt(snap.Tree.RootNode(), offset)
	id := classify(node)
	nesting := snap.Scopes.NestingAt(doccache.Position(offset))

	entries, locs := l.entriesAndLocations(uri, snap, id, nesting)
	return append(locs, entryLocations(uri, entries)...), nil
}

// FindReferencesAtPosition implements find_references_at_position: resolve
// the identifier under the cursor to its target FQN(s) the same way
// FindDefinitionsAtPosition does, then return every recorded Reference
// against each target.
func (l *Layer) FindReferencesAtPosition(uri string, pos Position) ([]symbolindex.Location, error) {
	snap, offset, err := l.snapshotAt(uri, pos)
	if err != nil {
		return nil, err
	}
	node := nodeAt(snap.Tree.RootNode(), offset)
	id := classify(node)
	nesting := snap.Scopes.NestingAt(doccache.Position(offset))

	entries, _ := l.entriesAndLocations(uri, snap, id, nesting)
	var out []symbolindex.Location
	for _, e := range entries {
		for _, r := range l.idx.ReferencesTo(e.FQN) {
			out = append(out, r.Location)
		}
	}
	return out, nil
}

// HoverAtPosition implements hover_at_position.
func (l *Layer) HoverAtPosition(uri string, pos Position) (Hover, error) {
	snap, offset, err := l.snapshotAt(uri, pos)
	if err != nil {
		return Hover{}, err
	}
	node := nodeAt(snap.Tree.RootNode(), offset)
	if node == nil {
		return Hover{}, fmt.Errorf("query: no token at %s:%d:%d", uri, pos.Line, pos.Column)
	}
	id := classify(node)
	nesting := snap.Scopes.NestingAt(doccache.Position(offset))

	content := ""
	if entries, _ := l.entriesAndLocations(uri, snap, id, nesting); len(entries) > 0 && entries[0].Doc.Text != "" {
		content = entries[0].Doc.Text
	}

	return Hover{
		Content: content,
		Range:   toLocation(uri, id.node),
		Type:    l.inferType(snap, id.expr, nesting),
	}, nil
}

// ResolveTypeAtPosition implements resolve_type_at_position.
func (l *Layer) ResolveTypeAtPosition(uri string, pos Position) (Type, error) {
	snap, offset, err := l.snapshotAt(uri, pos)
	if err != nil {
		return Type{}, err
	}
	node := nodeAt(snap.Tree.RootNode(), offset)
	id := classify(node)
	nesting := snap.Scopes.NestingAt(doccache.Position(offset))
	return l.inferType(snap, id.expr, nesting), nil
}

// DocumentSymbol is one entry in a document's symbol outline, nested by
// owner FQN.
type DocumentSymbol struct {
	Name     string
	FQN      fqn.FQN
	Kind     fqn.Kind
	Location symbolindex.Location
}

// DocumentSymbols returns every Entry defined in uri, ordered by Location.
func (l *Layer) DocumentSymbols(uri string) []DocumentSymbol {
	var out []DocumentSymbol
	// Copy the nodes out first: collectNodeSymbols calls back into the
	// Index, which an EachNode callback must not do.
	var nodes []symbolindex.ClassNode
	l.idx.EachNode(func(n *symbolindex.ClassNode) {
		nodes = append(nodes, symbolindex.ClassNode{
			FQN:              n.FQN,
			Methods:          append([]fqn.FQN(nil), n.Methods...),
			SingletonMethods: append([]fqn.FQN(nil), n.SingletonMethods...),
			Constants:        append([]fqn.FQN(nil), n.Constants...),
		})
	})
	for i := range nodes {
		collectNodeSymbols(l.idx, &nodes[i], uri, &out)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Location.StartByte < out[j].Location.StartByte
	})
	return out
}

func collectNodeSymbols(idx *symbolindex.Index, n *symbolindex.ClassNode, uri string, out *[]DocumentSymbol) {
	for _, entries := range [][]fqn.FQN{n.Methods, n.SingletonMethods, n.Constants} {
		for _, f := range entries {
			for _, e := range idx.Lookup(f, nil) {
				if e.Location.Document == uri {
					*out = append(*out, DocumentSymbol{Name: f.Terminal, FQN: f, Kind: f.Kind, Location: e.Location})
				}
			}
		}
	}
	for _, e := range idx.Lookup(n.FQN, nil) {
		if e.Location.Document == uri {
			*out = append(*out, DocumentSymbol{Name: n.FQN.Terminal, FQN: n.FQN, Kind: n.FQN.Kind, Location: e.Location})
		}
	}
}
