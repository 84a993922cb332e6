// Package rparser wraps tree-sitter-ruby parsing behind a lazily-populated,
// fixed-capacity pool of *ts.Parser instances, handing out independent parse
// trees to concurrent callers without serializing them behind one parser.
package rparser

import (
	"fmt"
	"log/slog"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/poolsize"
)

// Manager owns a pool of Ruby parsers and hands out parse trees. Callers
// own the returned Tree and must call tree.Close() when done with it.
type Manager struct {
	mu   sync.RWMutex
	pool *parserPool

	logger *slog.Logger

	stats struct {
		parsesCalled int
	}
}

// NewManager creates a Manager whose pool size defaults to
// poolsize.Optimal(), or override if positive.
func NewManager(logger *slog.Logger, override int) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	size := poolsize.OptimalOrOverride(override)
	return &Manager{
		pool:   newParserPool(size, logger),
		logger: logger,
	}
}

// Parse parses source and returns the resulting tree. The caller must call
// tree.Close().
func (m *Manager) Parse(source []byte) (*ts.Tree, error) {
	m.mu.Lock()
	m.stats.parsesCalled++
	m.mu.Unlock()

	parser, err := m.pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("rparser: acquire parser: %w", err)
	}
	tree := parser.Parse(source, nil)
	m.pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("rparser: parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		m.logger.Debug("ruby parse tree contains errors")
	}
	return tree, nil
}

// Reparse parses source using oldTree as an incremental-edit baseline. Callers
// must have already applied ts.Tree.Edit to oldTree for every pending change.
func (m *Manager) Reparse(source []byte, oldTree *ts.Tree) (*ts.Tree, error) {
	m.mu.Lock()
	m.stats.parsesCalled++
	m.mu.Unlock()

	parser, err := m.pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("rparser: acquire parser: %w", err)
	}
	tree := parser.Parse(source, oldTree)
	m.pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("rparser: parser.Parse returned nil tree")
	}
	return tree, nil
}

// Close releases every parser in the pool. The Manager cannot be used
// afterward.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("closing ruby parser manager", "parses_called", m.stats.parsesCalled)
	m.pool.close()
	return nil
}
