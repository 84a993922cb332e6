// Package analyzer implements the single source of truth for interpreting a
// Ruby parse tree: a definitions pass that populates the Symbol Index and
// the per-document scope tree, and a references pass that records use-sites
// once the whole project's definitions are known. Both passes walk the
// tree-sitter tree with a cursor-descent, node-kind-switch style: recognized
// kinds get dedicated handling, everything else recurses into its children.
package analyzer

import (
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// Analyzer is stateless between calls; all per-walk state lives on the
// walker types in definitions.go/references.go.
type Analyzer struct {
	logger *slog.Logger
}

// New creates an Analyzer.
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// BuildScopes satisfies doccache.ScopeAnalyzer: it re-walks the tree purely
// to materialize the local-variable scope tree, without touching the
// Symbol Index. The Document Cache calls this on every open/update, which
// is far more frequent than a full project (re)index.
func (a *Analyzer) BuildScopes(tree *ts.Tree, src []byte) *doccache.ScopeTree {
	w := &defWalker{src: src, builder: doccache.NewBuilder(uint32(len(src))), logger: a.logger}
	w.walkRoot(tree.RootNode())
	return w.builder.Finish(uint32(len(src)))
}

// AnalyzeDefinitions runs the definitions pass over tree: it populates idx
// with every class/module/method/constant Entry and ClassNode/edge found in
// document, and returns the document's scope tree.
func (a *Analyzer) AnalyzeDefinitions(tree *ts.Tree, src []byte, document string, idx *symbolindex.Index) *doccache.ScopeTree {
	w := &defWalker{
		src:      src,
		document: document,
		idx:      idx,
		builder:  doccache.NewBuilder(uint32(len(src))),
		logger:   a.logger,
	}
	w.walkRoot(tree.RootNode())
	return w.builder.Finish(uint32(len(src)))
}

// AnalyzeReferences runs the references pass over tree: it records a
// Reference for every constant read, mixin/inheritance target, method call,
// and variable read/write found in document. Must run after every file in
// the project has completed its definitions pass, so constant lookup sees
// the complete index.
func (a *Analyzer) AnalyzeReferences(tree *ts.Tree, src []byte, document string, idx *symbolindex.Index) {
	w := &refWalker{src: src, document: document, idx: idx, logger: a.logger}
	w.walk(tree.RootNode(), nil, nil)
}

// Compile-time check that *symbolindex.Index satisfies fqn.Table, which both
// passes resolve constants through.
var _ fqn.Table = (*symbolindex.Index)(nil)
