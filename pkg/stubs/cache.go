package stubs

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/filesrc"
)

// Parser is the subset of pkg/rparser.Manager a stub/dependency parse
// needs.
type Parser interface {
	Parse(source []byte) (*ts.Tree, error)
}

// parsed is one cached stub/dependency file's parse result.
type parsed struct {
	tree *ts.Tree
	src  []byte
}

// Cache bounds the number of resident stub/dependency parse trees: stub
// libraries can list far more files than a project keeps open at once, so
// unlike the Document Cache (which keeps the whole open set), this cache
// evicts the least recently used parse once a configured file count is
// exceeded. The indexing phases in pkg/indexer do not use it; they parse
// stub and dependency files through their own worker pool.
type Cache struct {
	mu     sync.Mutex
	trees  *lru.Cache[string, parsed]
	parser Parser
	files  filesrc.Cache
	logger *slog.Logger
}

// DefaultCacheCapacity bounds resident stub parses; a full bundled stub
// set is in the low hundreds of files, so this comfortably holds it all
// without unbounded growth when dependency trees are also in play.
const DefaultCacheCapacity = 512

// NewCache builds a Cache backed by parser for parsing and files for byte
// access. capacity <= 0 uses DefaultCacheCapacity.
func NewCache(parser Parser, files filesrc.Cache, capacity int, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}

	trees, err := lru.NewWithEvict[string, parsed](capacity, func(_ string, p parsed) {
		if p.tree != nil {
			p.tree.Close()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("stubs: create LRU: %w", err)
	}

	return &Cache{trees: trees, parser: parser, files: files, logger: logger}, nil
}

// Parse returns path's parse tree and source bytes, parsing and caching on
// first access. The returned tree is owned by the Cache; callers must not
// call tree.Close() on it themselves, since it may still be served to a
// later caller or evicted and closed by the LRU.
func (c *Cache) Parse(path string) (*ts.Tree, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.trees.Get(path); ok {
		return p.tree, p.src, nil
	}

	src, err := c.files.FetchCode(path, 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("stubs: read %q: %w", path, err)
	}
	tree, err := c.parser.Parse([]byte(src))
	if err != nil {
		return nil, nil, fmt.Errorf("stubs: parse %q: %w", path, err)
	}

	c.trees.Add(path, parsed{tree: tree, src: []byte(src)})
	return tree, []byte(src), nil
}

// Close releases every cached parse tree.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees.Purge()
}
