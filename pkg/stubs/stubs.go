// Package stubs discovers and classifies the bundled standard-library stub
// set and external-dependency source trees that Indexer Coordinator phases
// 1, 2, 4 and 5 walk.
package stubs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind classifies a source tree by where its definitions should be filed:
// project code, the bundled stub set for the active language version, or
// an external dependency checked out on disk.
type Kind int

const (
	KindProject Kind = iota
	KindStub
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindStub:
		return "stub"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Library is one classified source tree: a root directory plus the .rb
// files discovered under it, sorted for deterministic phase ordering.
type Library struct {
	Kind  Kind
	Root  string
	Files []string
}

// defaultVersion is used when no marker file or explicit flag names one.
const defaultVersion = "3.3"

// DetectVersion resolves the active language version: an explicit flag
// value wins, otherwise a ".ruby-version" marker at the project root,
// otherwise defaultVersion.
func DetectVersion(projectRoot, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	marker := filepath.Join(projectRoot, ".ruby-version")
	data, err := os.ReadFile(marker)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultVersion, nil
		}
		return "", fmt.Errorf("stubs: read %q: %w", marker, err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return defaultVersion, nil
	}
	return version, nil
}

// ResolveStubDir joins a stub root with the chosen version, e.g.
// "stubs/3.3" under stubRoot "stubs".
func ResolveStubDir(stubRoot, version string) string {
	return filepath.Join(stubRoot, version)
}

// Discover walks root collecting every ".rb" file, returned in
// lexicographic order so repeated runs produce a stable phase order.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".rb") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stubs: walk %q: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// StubLibrary discovers the bundled stub set for version under stubRoot.
func StubLibrary(stubRoot, version string) (Library, error) {
	dir := ResolveStubDir(stubRoot, version)
	files, err := Discover(dir)
	if err != nil {
		return Library{}, err
	}
	return Library{Kind: KindStub, Root: dir, Files: files}, nil
}

// DependencyLibraries discovers one Library per immediate subdirectory of
// depsRoot (the layout a vendored-gems directory uses: one directory per
// dependency). A depsRoot that doesn't exist yields no libraries, not an
// error — most projects have no vendored dependencies on disk.
func DependencyLibraries(depsRoot string) ([]Library, error) {
	entries, err := os.ReadDir(depsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stubs: read %q: %w", depsRoot, err)
	}

	var libs []Library
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		root := filepath.Join(depsRoot, e.Name())
		files, err := Discover(root)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		libs = append(libs, Library{Kind: KindDependency, Root: root, Files: files})
	}
	sort.Slice(libs, func(i, j int) bool { return libs[i].Root < libs[j].Root })
	return libs, nil
}

// IsPlaceholderValue reports whether a constant assignment's right-hand
// side is the stub set's placeholder token, meaning the Analyzer should
// record the constant without attempting a value-derived type.
func IsPlaceholderValue(src string) bool {
	return strings.TrimSpace(src) == "_"
}
