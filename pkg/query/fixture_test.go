package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// fixture wires a real parse -> definitions pass -> references pass ->
// ancestor resolution pipeline exactly the way the server builds one at
// startup, then opens every source in a Document Cache so a Layer can answer
// position-based queries against it.
type fixture struct {
	idx      *symbolindex.Index
	docs     *doccache.Cache
	resolver *ancestor.Resolver
	layer    *Layer
}

// newFixture indexes sources (keyed by document URI) and returns a ready
// Layer. Definitions run for every document before references run for any of
// them, matching the project-wide indexing order the analyzer package
// documents.
func newFixture(t *testing.T, sources map[string]string) *fixture {
	t.Helper()
	logger := rlslog.Discard()

	parser := rparser.NewManager(logger, 1)
	t.Cleanup(func() { _ = parser.Close() })

	az := analyzer.New(logger)
	idx := symbolindex.New(logger)

	for uri, src := range sources {
		tree, err := parser.Parse([]byte(src))
		require.NoError(t, err)
		az.AnalyzeDefinitions(tree, []byte(src), uri, idx)
		tree.Close()
	}
	for uri, src := range sources {
		tree, err := parser.Parse([]byte(src))
		require.NoError(t, err)
		az.AnalyzeReferences(tree, []byte(src), uri, idx)
		tree.Close()
	}

	resolver := ancestor.New(idx, logger)

	docs, err := doccache.New(parser, az, doccache.DefaultConfig(), logger)
	require.NoError(t, err)
	for uri, src := range sources {
		_, err := docs.Open(uri, []byte(src))
		require.NoError(t, err)
	}

	return &fixture{
		idx:      idx,
		docs:     docs,
		resolver: resolver,
		layer:    New(idx, docs, resolver, logger),
	}
}

// positionAt returns the 1-based line/column of the first occurrence of
// substr in src, using the same byte-by-byte line/column accounting as
// byteOffsetForPosition so it inverts exactly.
func positionAt(t *testing.T, src, substr string) Position {
	t.Helper()
	idx := strings.Index(src, substr)
	require.GreaterOrEqualf(t, idx, 0, "substring %q not found", substr)

	line, col := uint32(1), uint32(1)
	for i := 0; i < idx; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Position{Line: line, Column: col}
}
