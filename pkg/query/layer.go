// Package query implements the Query Layer: a thin read-only facade
// composing the Symbol Index, Document Cache, and Ancestor Resolver to
// answer position-based editor queries. One method per editor-facing
// operation, no state of its own, every answer built by composing
// lower-level lookups.
package query

import (
	"fmt"
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// Position is an editor-facing, 1-based line/column position.
type Position struct {
	Line   uint32
	Column uint32
}

// Layer is the Query Layer. It owns no state beyond its collaborators.
type Layer struct {
	idx      *symbolindex.Index
	docs     *doccache.Cache
	resolver *ancestor.Resolver
	logger   *slog.Logger
}

// New builds a Layer over idx, docs, and resolver.
func New(idx *symbolindex.Index, docs *doccache.Cache, resolver *ancestor.Resolver, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{idx: idx, docs: docs, resolver: resolver, logger: logger}
}

// Hover is the result of HoverAtPosition.
type Hover struct {
	Content string
	Range   symbolindex.Location
	Type    Type
}

// Type is a bounded, possibly-unknown inferred type. A literal type (e.g.
// from an integer expression) is represented as a top-level class FQN the
// same as any other class, so ancestor-chain walking treats inferred and
// declared types alike.
type Type struct {
	FQN   fqn.FQN
	Known bool
}

// String renders t for diagnostics and hover content: the FQN's own
// rendering, or "unknown" when nothing could be inferred.
func (t Type) String() string {
	if !t.Known {
		return "unknown"
	}
	return t.FQN.String()
}

// CompletionItem is one ranked completion candidate.
type CompletionItem struct {
	Name string
	FQN  fqn.FQN
	Kind fqn.Kind
}

// snapshotAt loads uri's current parse snapshot and resolves pos to a byte
// offset within it.
func (l *Layer) snapshotAt(uri string, pos Position) (doccache.Snapshot, uint32, error) {
	snap, ok := l.docs.Get(uri)
	if !ok {
		return doccache.Snapshot{}, 0, fmt.Errorf("query: %s is not open", uri)
	}
	return snap, byteOffsetForPosition(snap.Text, pos), nil
}

// byteOffsetForPosition converts a 1-based line/column into a 0-based byte
// offset by scanning text's line breaks. Documents are typically small
// enough (single source files) that a linear scan is not worth caching
// alongside Position.Locals-style indexes.
func byteOffsetForPosition(text []byte, pos Position) uint32 {
	line := uint32(1)
	col := uint32(1)
	for i, b := range text {
		if line == pos.Line && col == pos.Column {
			return uint32(i)
		}
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return uint32(len(text))
}

func nodeAt(root *ts.Node, offset uint32) *ts.Node {
	if root == nil {
		return nil
	}
	return root.NamedDescendantForByteRange(offset, offset)
}

func toLocation(uri string, node *ts.Node) symbolindex.Location {
	start, end := node.StartPosition(), node.EndPosition()
	return symbolindex.Location{
		Document:    uri,
		StartLine:   uint32(start.Row) + 1,
		StartColumn: uint32(start.Column) + 1,
		EndLine:     uint32(end.Row) + 1,
		EndColumn:   uint32(end.Column) + 1,
		StartByte:   uint32(node.StartByte()),
		EndByte:     uint32(node.EndByte()),
	}
}

func docLocToIndexLocation(uri string, l doccache.Location) symbolindex.Location {
	return symbolindex.Location{
		Document:    uri,
		StartLine:   l.StartLine,
		StartColumn: l.StartColumn,
		EndLine:     l.EndLine,
		EndColumn:   l.EndColumn,
		StartByte:   l.StartByte,
		EndByte:     l.EndByte,
	}
}
