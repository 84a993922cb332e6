// Package lspio is the editor-protocol adapter: it exposes the Query Layer
// and the Indexer Coordinator as MCP tools over github.com/mark3labs/mcp-go,
// so an editor integration talks to the core over stdio instead of linking
// against it directly.
package lspio

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/indexer"
	"github.com/sorahex/rubylsp/pkg/mcplog"
	"github.com/sorahex/rubylsp/pkg/query"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server exposing rubylsp's core operations:
// document lifecycle (open/update/close), the five editor-facing queries,
// and indexer control/stats.
type Server struct {
	mcpServer *server.MCPServer

	query *query.Layer
	docs  *doccache.Cache
	coord *indexer.Coordinator
	idx   *symbolindex.Index

	logger *mcplog.Logger // may be nil if call logging is disabled
	slog   *slog.Logger
}

// NewServer creates an MCP server backed by a Query Layer, a Document
// Cache, an Indexer Coordinator, and the Symbol Index the coordinator
// feeds (needed directly for the indexing_stats tool). Pass nil for
// logger to disable JSONL tool-call logging.
func NewServer(q *query.Layer, docs *doccache.Cache, coord *indexer.Coordinator, idx *symbolindex.Index, logger *mcplog.Logger, slogger *slog.Logger) *Server {
	if slogger == nil {
		slogger = slog.Default()
	}
	s := &Server{query: q, docs: docs, coord: coord, idx: idx, logger: logger, slog: slogger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("rubylsp", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: openDocumentTool(), Handler: s.handleOpenDocument},
		server.ServerTool{Tool: updateDocumentTool(), Handler: s.handleUpdateDocument},
		server.ServerTool{Tool: closeDocumentTool(), Handler: s.handleCloseDocument},
		server.ServerTool{Tool: definitionTool(), Handler: s.handleDefinition},
		server.ServerTool{Tool: referencesTool(), Handler: s.handleReferences},
		server.ServerTool{Tool: hoverTool(), Handler: s.handleHover},
		server.ServerTool{Tool: completionTool(), Handler: s.handleCompletion},
		server.ServerTool{Tool: documentSymbolTool(), Handler: s.handleDocumentSymbol},
		server.ServerTool{Tool: reindexFileTool(), Handler: s.handleReindexFile},
		server.ServerTool{Tool: indexingStatsTool(), Handler: s.handleIndexingStats},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close shuts down the call logger if one is active. Should be deferred
// after NewServer.
func (s *Server) Close() error {
	if s.logger != nil {
		return s.logger.Close()
	}
	return nil
}

// ProgressSink wires this server's MCPServer as an indexer.ProgressSink,
// broadcasting each phase event as an indexing_progress notification. See
// progress.go.
func (s *Server) ProgressSink() indexer.ProgressSink {
	return &notifyingSink{mcpServer: s.mcpServer, logger: s.slog}
}
