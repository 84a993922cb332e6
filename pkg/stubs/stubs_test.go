package stubs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDetectVersion_ExplicitWins(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, ".ruby-version"), "3.1\n")

	version, err := DetectVersion(dir, "3.2")
	require.NoError(t, err)
	require.Equal(t, "3.2", version)
}

func TestDetectVersion_ReadsMarkerFile(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, ".ruby-version"), "3.1\n")

	version, err := DetectVersion(dir, "")
	require.NoError(t, err)
	require.Equal(t, "3.1", version)
}

func TestDetectVersion_DefaultsWhenMarkerMissing(t *testing.T) {
	dir := t.TempDir()

	version, err := DetectVersion(dir, "")
	require.NoError(t, err)
	require.Equal(t, defaultVersion, version)
}

func TestDiscover_FindsRubyFilesOnly(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.rb"), "class A\nend\n")
	mustWrite(t, filepath.Join(dir, "nested", "b.rb"), "class B\nend\n")
	mustWrite(t, filepath.Join(dir, "README.md"), "not ruby")

	files, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, filepath.Join(dir, "a.rb"), files[0])
	require.Equal(t, filepath.Join(dir, "nested", "b.rb"), files[1])
}

func TestStubLibrary_ResolvesVersionSubdirectory(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "3.3", "integer.rb"), "class Integer\nend\n")

	lib, err := StubLibrary(dir, "3.3")
	require.NoError(t, err)
	require.Equal(t, KindStub, lib.Kind)
	require.Len(t, lib.Files, 1)
}

func TestDependencyLibraries_OneLibraryPerSubdirectory(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "somegem", "lib.rb"), "module SomeGem\nend\n")
	mustWrite(t, filepath.Join(dir, "othergem", "lib.rb"), "module OtherGem\nend\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty_gem"), 0755))

	libs, err := DependencyLibraries(dir)
	require.NoError(t, err)
	require.Len(t, libs, 2)
	for _, lib := range libs {
		require.Equal(t, KindDependency, lib.Kind)
		require.Len(t, lib.Files, 1)
	}
}

func TestDependencyLibraries_MissingRootIsNotAnError(t *testing.T) {
	libs, err := DependencyLibraries(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Nil(t, libs)
}

func TestIsPlaceholderValue(t *testing.T) {
	require.True(t, IsPlaceholderValue("_"))
	require.True(t, IsPlaceholderValue("  _  "))
	require.False(t, IsPlaceholderValue("10"))
	require.False(t, IsPlaceholderValue("_foo"))
}

func TestCache_ParsesAndCachesStubFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "integer.rb")
	mustWrite(t, path, "class Integer\n  MAX = _\nend\n")

	files := filesrc.New(filesrc.DefaultConfig())
	defer files.Close()
	parser := rparser.NewManager(rlslog.Discard(), 1)
	defer parser.Close()

	cache, err := NewCache(parser, files, 0, rlslog.Discard())
	require.NoError(t, err)
	defer cache.Close()

	tree, src, err := cache.Parse(path)
	require.NoError(t, err)
	require.NotNil(t, tree)
	require.Contains(t, string(src), "class Integer")

	// Second call hits the cache and returns the same tree.
	tree2, _, err := cache.Parse(path)
	require.NoError(t, err)
	require.Same(t, tree, tree2)
}

func TestCache_EvictsWhenOverCapacity(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.rb")
	pathB := filepath.Join(dir, "b.rb")
	mustWrite(t, pathA, "class A\nend\n")
	mustWrite(t, pathB, "class B\nend\n")

	files := filesrc.New(filesrc.DefaultConfig())
	defer files.Close()
	parser := rparser.NewManager(rlslog.Discard(), 1)
	defer parser.Close()

	cache, err := NewCache(parser, files, 1, rlslog.Discard())
	require.NoError(t, err)
	defer cache.Close()

	treeA0, _, err := cache.Parse(pathA)
	require.NoError(t, err)
	_, _, err = cache.Parse(pathB)
	require.NoError(t, err)

	// pathA's tree should have been evicted and reparsed into a new tree.
	treeA1, _, err := cache.Parse(pathA)
	require.NoError(t, err)
	require.NotNil(t, treeA1)
	require.NotSame(t, treeA0, treeA1)
}
