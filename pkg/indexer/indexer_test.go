package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// recordingSink captures every ProgressEvent emitted during a run, for
// assertions on phase ordering and the final percent.
type recordingSink struct {
	events []ProgressEvent
}

func (s *recordingSink) Progress(ev ProgressEvent) {
	s.events = append(s.events, ev)
}

func newTestCoordinator(t *testing.T, root, stubRoot, depRoot string, sink ProgressSink) (*Coordinator, *symbolindex.Index, *ancestor.Resolver) {
	t.Helper()
	logger := rlslog.Discard()

	files := filesrc.New(filesrc.DefaultConfig())
	t.Cleanup(func() { _ = files.Close() })

	parser := rparser.NewManager(logger, 1)
	t.Cleanup(func() { _ = parser.Close() })

	idx := symbolindex.New(logger)
	az := analyzer.New(logger)
	resolver := ancestor.New(idx, logger)

	cfg := Config{ProjectRoot: root, StubRoot: stubRoot, DependencyRoot: depRoot, Workers: 2}
	coord := New(cfg, idx, az, resolver, files, parser, sink, logger)
	return coord, idx, resolver
}

func TestCoordinator_Run_IndexesProjectStubAndDependencyTiers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dog.rb"), `class Dog < Animal
  def bark
  end
end
`)
	writeFile(t, filepath.Join(root, ".ruby-version"), "3.3\n")

	stubRoot := t.TempDir()
	writeFile(t, filepath.Join(stubRoot, "3.3", "animal.rb"), `class Animal
  def breathe
  end
end
`)

	depRoot := t.TempDir()
	writeFile(t, filepath.Join(depRoot, "somegem", "lib.rb"), `module SomeGem
end
`)

	sink := &recordingSink{}
	coord, idx, resolver := newTestCoordinator(t, root, stubRoot, depRoot, sink)

	require.NoError(t, coord.Run(context.Background()))

	stats := coord.Stats()
	require.Equal(t, "3.3", stats.LanguageVersion)
	require.Equal(t, 1, stats.ProjectFilesIndexed)
	require.Equal(t, 1, stats.StubFilesIndexed)
	require.Equal(t, 1, stats.DependencyFilesIndexed)
	require.Equal(t, 0, stats.FilesFailed)

	dogEntries := idx.Lookup(fqn.New(nil, "Dog", fqn.KindClass), nil)
	require.NotEmpty(t, dogEntries)

	chain := resolver.Resolve(fqn.New(nil, "Dog", fqn.KindClass))
	require.Len(t, chain, 2)
	require.Equal(t, "Dog", chain[0].Terminal)
	require.Equal(t, "Animal", chain[1].Terminal)

	bark := idx.SearchMethodsByName("bark")
	require.Len(t, bark, 1)

	refs := idx.ReferencesTo(fqn.New(nil, "Animal", fqn.KindClass))
	require.NotEmpty(t, refs)

	require.NotEmpty(t, sink.events)
	last := sink.events[len(sink.events)-1]
	require.Equal(t, PhaseCompletionTrie, last.Phase)
	require.Equal(t, float64(100), last.Percent)
}

func TestCoordinator_Run_ContinuesPastAFileAnalysisFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.rb"), "class Ok\nend\n")
	// A dangling symlink is discovered by the scanner (it matches *.rb by
	// name) but fails to read, exercising the single-file failure path
	// without taking down the rest of the run.
	require.NoError(t, os.Symlink(filepath.Join(root, "missing-target"), filepath.Join(root, "broken.rb")))

	sink := &recordingSink{}
	coord, idx, _ := newTestCoordinator(t, root, "", "", sink)

	require.NoError(t, coord.Run(context.Background()))

	stats := coord.Stats()
	require.Equal(t, 1, stats.ProjectFilesIndexed)
	require.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.Errors, 1)
	require.Equal(t, filepath.Join(root, "broken.rb"), stats.Errors[0].FilePath)

	entries := idx.Lookup(fqn.New(nil, "Ok", fqn.KindClass), nil)
	require.NotEmpty(t, entries)
}

func TestCoordinator_IncrementalUpdate_ReplacesPriorEntriesForFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "dog.rb")
	writeFile(t, path, "class Dog\nend\n")

	coord, idx, _ := newTestCoordinator(t, root, "", "", nil)
	require.NoError(t, coord.Run(context.Background()))
	require.NotEmpty(t, idx.Lookup(fqn.New(nil, "Dog", fqn.KindClass), nil))

	writeFile(t, path, "class Cat\nend\n")
	require.NoError(t, coord.IncrementalUpdate(path))

	require.Empty(t, idx.Lookup(fqn.New(nil, "Dog", fqn.KindClass), nil))
	require.NotEmpty(t, idx.Lookup(fqn.New(nil, "Cat", fqn.KindClass), nil))
}
