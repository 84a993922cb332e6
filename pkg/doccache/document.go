package doccache

import (
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Document is one open file: its text, parse tree, derived scope tree, and
// version counter.
//
// Callers obtain a read-only Snapshot via Cache.Get rather than touching a
// Document directly, so that a concurrent Update cannot mutate state out
// from under an in-flight query (per-document lock with
// snapshot-then-release).
type Document struct {
	mu sync.RWMutex

	uri     string
	text    []byte
	version int
	tree    *ts.Tree
	scopes  *ScopeTree

	lineStarts []uint32 // lazy, built on first LineStarts() call
}

// Snapshot is an immutable view of a Document at a point in time, safe to
// read without holding any lock.
type Snapshot struct {
	URI     string
	Text    []byte
	Version int
	Tree    *ts.Tree
	Scopes  *ScopeTree
}

func newDocument(uri string, text []byte, tree *ts.Tree, scopes *ScopeTree) *Document {
	return &Document{
		uri:     uri,
		text:    text,
		version: 1,
		tree:    tree,
		scopes:  scopes,
	}
}

func (d *Document) snapshotLocked() Snapshot {
	return Snapshot{
		URI:     d.uri,
		Text:    d.text,
		Version: d.version,
		Tree:    d.tree,
		Scopes:  d.scopes,
	}
}

// Snapshot returns a consistent view of the document, holding the read lock
// only for the duration of the copy (snapshot-then-release).
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

func (d *Document) replace(text []byte, tree *ts.Tree, scopes *ScopeTree) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tree != nil {
		d.tree.Close()
	}
	d.text = text
	d.tree = tree
	d.scopes = scopes
	d.version++
	d.lineStarts = nil
}

// LineStarts returns the byte offset of the start of each line, computed
// lazily and cached on first use.
func (d *Document) LineStarts() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lineStarts != nil {
		return d.lineStarts
	}
	starts := []uint32{0}
	for i, b := range d.text {
		if b == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	d.lineStarts = starts
	return starts
}

func (d *Document) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tree != nil {
		d.tree.Close()
		d.tree = nil
	}
	d.scopes = nil
}
