package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDiscoverProjectFiles_FindsRubyFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rb"), "class A\nend\n")
	writeFile(t, filepath.Join(dir, "lib", "b.rb"), "class B\nend\n")
	writeFile(t, filepath.Join(dir, "README.md"), "not ruby")

	files, err := discoverProjectFiles(dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, filepath.Join(dir, "a.rb"), files[0])
	require.Equal(t, filepath.Join(dir, "lib", "b.rb"), files[1])
}

func TestDiscoverProjectFiles_ExcludesMatchingDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.rb"), "class App\nend\n")
	writeFile(t, filepath.Join(dir, "vendor", "gem.rb"), "class Gem\nend\n")

	files, err := discoverProjectFiles(dir, DefaultExcludes)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, filepath.Join(dir, "app.rb"), files[0])
}
