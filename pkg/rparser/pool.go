package rparser

import (
	"fmt"
	"log/slog"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
)

// parserPool is a channel-based pool of tree-sitter parsers, all configured
// for the Ruby grammar, created lazily up to maxSize and reused thereafter.
type parserPool struct {
	pool    chan *ts.Parser
	maxSize int

	mutex   sync.Mutex
	created int

	logger *slog.Logger
}

func newParserPool(maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		maxSize: maxSize,
		logger:  logger,
	}
}

func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.pool:
		return parser, nil
	default:
		return p.createParserIfNeeded()
	}
}

func (p *parserPool) createParserIfNeeded() (*ts.Parser, error) {
	p.mutex.Lock()

	if p.created < p.maxSize {
		parser := ts.NewParser()
		if parser == nil {
			p.mutex.Unlock()
			return nil, fmt.Errorf("rparser: failed to create parser")
		}
		lang := ts.NewLanguage(tsruby.Language())
		if err := parser.SetLanguage(lang); err != nil {
			parser.Close()
			p.mutex.Unlock()
			return nil, fmt.Errorf("rparser: set language: %w", err)
		}
		p.created++
		p.logger.Debug("created ruby parser", "pool_size", p.created)
		p.mutex.Unlock()
		return parser, nil
	}

	p.mutex.Unlock()
	parser := <-p.pool
	return parser, nil
}

func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	select {
	case p.pool <- parser:
	default:
		parser.Close()
		p.logger.Warn("ruby parser pool full, closing excess parser")
	}
}

func (p *parserPool) close() {
	close(p.pool)
	count := 0
	for parser := range p.pool {
		if parser != nil {
			parser.Close()
			count++
		}
	}
	p.logger.Debug("closed ruby parser pool", "parsers_closed", count)
}
