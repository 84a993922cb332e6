package lspio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/indexer"
	"github.com/sorahex/rubylsp/pkg/query"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// newTestServer indexes sources (keyed by document URI) through a real
// coordinator run rooted at a temp directory, then builds a Server around
// the resulting Query Layer and Document Cache, mirroring the wiring
// cmd/rubylsp does at startup. Every source is also left open in the
// Document Cache so the position-based tool handlers can answer against it
// without a prior open_document call in the test itself.
func newTestServer(t *testing.T, sources map[string]string) *Server {
	t.Helper()
	logger := rlslog.Discard()

	root := t.TempDir()
	for name, src := range sources {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}

	files := filesrc.New(filesrc.DefaultConfig())
	t.Cleanup(func() { _ = files.Close() })

	parser := rparser.NewManager(logger, 1)
	t.Cleanup(func() { _ = parser.Close() })

	idx := symbolindex.New(logger)
	az := analyzer.New(logger)
	resolver := ancestor.New(idx, logger)

	coord := indexer.New(indexer.Config{ProjectRoot: root, Workers: 2}, idx, az, resolver, files, parser, nil, logger)
	require.NoError(t, coord.Run(context.Background()))

	docs, err := doccache.New(parser, az, doccache.DefaultConfig(), logger)
	require.NoError(t, err)
	for name, src := range sources {
		_, err := docs.Open(filepath.Join(root, name), []byte(src))
		require.NoError(t, err)
	}

	layer := query.New(idx, docs, resolver, logger)
	return NewServer(layer, docs, coord, idx, nil, logger)
}

func uriFor(t *testing.T, s *Server, name string) string {
	t.Helper()
	for _, uri := range s.docs.OpenURIs() {
		if filepath.Base(uri) == name {
			return uri
		}
	}
	t.Fatalf("no open document named %q", name)
	return ""
}

// positionAt returns the 1-based line/column of substr's first occurrence
// in src, the same accounting query.Layer uses internally.
func positionAt(t *testing.T, src, substr string) (line, column float64) {
	t.Helper()
	idx := strings.Index(src, substr)
	require.GreaterOrEqualf(t, idx, 0, "substring %q not found", substr)

	l, c := 1, 1
	for i := 0; i < idx; i++ {
		if src[i] == '\n' {
			l++
			c = 1
		} else {
			c++
		}
	}
	return float64(l), float64(c)
}
