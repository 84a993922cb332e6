package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadProjectConfig_MissingFileReturnsNil(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := loadProjectConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadProjectConfig_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".rubylsp"), 0755))
	yaml := "stub_root: stubs\ndependency_root: vendor/gems\nlanguage_version: \"3.3\"\nworkers: 4\nlog_level: debug\nlog_format: text\ncall_log_path: .rubylsp/calls.jsonl\nexclude:\n  - spec/**\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rubylsp", "config.yaml"), []byte(yaml), 0644))
	chdir(t, dir)

	cfg, err := loadProjectConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "stubs", cfg.StubRoot)
	assert.Equal(t, "vendor/gems", cfg.DependencyRoot)
	assert.Equal(t, "3.3", cfg.LanguageVersion)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"spec/**"}, cfg.Exclude)
}

func TestResolveIndexerConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".rubylsp"), 0755))
	yaml := "stub_root: stubs\nworkers: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rubylsp", "config.yaml"), []byte(yaml), 0644))
	chdir(t, dir)

	f := parseServeFlags([]string{"--workers", "8"})
	ic := resolveIndexerConfig(f)
	assert.Equal(t, "stubs", ic.StubRoot) // from file, no flag given
	assert.Equal(t, 8, ic.Workers)        // flag wins over file's 2
}

func TestResolveLogConfig_DefaultsWhenNothingSet(t *testing.T) {
	chdir(t, t.TempDir())
	lc := resolveLogConfig(serveFlags{})
	assert.NotEmpty(t, lc.Level)
	assert.NotEmpty(t, lc.Format)
}

func TestParseServeFlags_ParsesWatchAndProjectRoot(t *testing.T) {
	f := parseServeFlags([]string{"--project-root", "/tmp/proj", "--watch"})
	assert.Equal(t, "/tmp/proj", f.projectRoot)
	assert.True(t, f.watch)
}
