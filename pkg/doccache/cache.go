package doccache

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	ts "github.com/tree-sitter/go-tree-sitter"
)

// Parser is the subset of pkg/rparser.Manager that doccache needs, kept as
// an interface so the cache can be unit-tested against a fake.
type Parser interface {
	Parse(source []byte) (*ts.Tree, error)
	Reparse(source []byte, oldTree *ts.Tree) (*ts.Tree, error)
}

// ScopeAnalyzer builds a ScopeTree from a freshly (re)parsed tree. Satisfied
// by pkg/analyzer.Analyzer's definitions pass.
type ScopeAnalyzer interface {
	BuildScopes(tree *ts.Tree, src []byte) *ScopeTree
}

// Edit is one incremental text change, expressed the way tree-sitter wants
// it (byte offsets plus the point each offset falls on).
type Edit struct {
	StartByte, OldEndByte, NewEndByte       uint32
	StartPoint, OldEndPoint, NewEndPoint    ts.Point
}

// evictedEntry is what the LRU retains for a just-closed document: enough to
// skip re-parsing on a fast reopen with unchanged content.
type evictedEntry struct {
	text   []byte
	tree   *ts.Tree
	scopes *ScopeTree
}

// Cache is the Document Cache: a map of open documents, each independently
// locked, plus a bounded LRU of recently closed documents' parsed state for
// a fast reopen.
type Cache struct {
	mu   sync.RWMutex
	open map[string]*Document

	closed *lru.Cache[string, evictedEntry]

	parser   Parser
	analyzer ScopeAnalyzer
	logger   *slog.Logger
}

// Config controls the Cache's closed-document retention.
type Config struct {
	// ClosedDocumentCapacity bounds how many closed documents' parsed scope
	// trees are retained for a fast reopen before the oldest is evicted.
	ClosedDocumentCapacity int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ClosedDocumentCapacity: 64}
}

// New creates a Cache backed by parser and analyzer.
func New(parser Parser, analyzer ScopeAnalyzer, cfg Config, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClosedDocumentCapacity <= 0 {
		cfg.ClosedDocumentCapacity = DefaultConfig().ClosedDocumentCapacity
	}

	closed, err := lru.NewWithEvict[string, evictedEntry](cfg.ClosedDocumentCapacity, func(uri string, e evictedEntry) {
		if e.tree != nil {
			e.tree.Close()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("doccache: create LRU: %w", err)
	}

	return &Cache{
		open:     make(map[string]*Document),
		closed:   closed,
		parser:   parser,
		analyzer: analyzer,
		logger:   logger,
	}, nil
}

// Open parses text, builds the scope tree, and registers the document at
// version 1. If a matching closed entry with byte-identical text is still
// in the LRU, its parsed state is reused instead of reparsing.
func (c *Cache) Open(uri string, text []byte) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.closed.Get(uri); ok {
		c.closed.Remove(uri)
		if string(prior.text) == string(text) {
			doc := newDocument(uri, prior.text, prior.tree, prior.scopes)
			c.open[uri] = doc
			return doc.Snapshot(), nil
		}
		if prior.tree != nil {
			prior.tree.Close()
		}
	}

	tree, err := c.parser.Parse(text)
	if err != nil {
		return Snapshot{}, fmt.Errorf("doccache: open %s: %w", uri, err)
	}
	scopes := c.analyzer.BuildScopes(tree, text)

	doc := newDocument(uri, text, tree, scopes)
	c.open[uri] = doc
	return doc.Snapshot(), nil
}

// Update applies edits (if non-empty) to the document's existing tree and
// reparses incrementally, or fully re-parses newText when edits is empty —
// either way bumping the version.
func (c *Cache) Update(uri string, newText []byte, edits []Edit) (Snapshot, error) {
	c.mu.RLock()
	doc, ok := c.open[uri]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("doccache: update %s: not open", uri)
	}

	snap := doc.Snapshot()
	oldTree := snap.Tree

	if len(edits) > 0 && oldTree != nil {
		for _, e := range edits {
			oldTree.Edit(ts.InputEdit{
				StartByte:   e.StartByte,
				OldEndByte:  e.OldEndByte,
				NewEndByte:  e.NewEndByte,
				StartPoint:  e.StartPoint,
				OldEndPoint: e.OldEndPoint,
				NewEndPoint: e.NewEndPoint,
			})
		}
	}

	var newTree *ts.Tree
	var err error
	if len(edits) > 0 && oldTree != nil {
		newTree, err = c.parser.Reparse(newText, oldTree)
	} else {
		newTree, err = c.parser.Parse(newText)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("doccache: update %s: %w", uri, err)
	}

	scopes := c.analyzer.BuildScopes(newTree, newText)
	doc.replace(newText, newTree, scopes)
	return doc.Snapshot(), nil
}

// Close drops the parse tree and scopes from the open set, retaining them
// in the closed-document LRU for a possible fast reopen. The Symbol Index
// retains no document-local state regardless.
func (c *Cache) Close(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.open[uri]
	if !ok {
		return
	}
	snap := doc.Snapshot()
	delete(c.open, uri)

	c.closed.Add(uri, evictedEntry{text: snap.Text, tree: snap.Tree, scopes: snap.Scopes})
	// The document's own Close must not also close the tree — the LRU now
	// owns it until eviction or a fast reopen.
	doc.mu.Lock()
	doc.tree = nil
	doc.scopes = nil
	doc.mu.Unlock()
}

// Get returns a snapshot of the currently open document at uri.
func (c *Cache) Get(uri string) (Snapshot, bool) {
	c.mu.RLock()
	doc, ok := c.open[uri]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return doc.Snapshot(), true
}

// IsOpen reports whether uri currently has an open Document.
func (c *Cache) IsOpen(uri string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.open[uri]
	return ok
}

// OpenURIs returns every currently open document URI.
func (c *Cache) OpenURIs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	uris := make([]string, 0, len(c.open))
	for uri := range c.open {
		uris = append(uris, uri)
	}
	return uris
}
