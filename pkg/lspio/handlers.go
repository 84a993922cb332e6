package lspio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sorahex/rubylsp/pkg/query"
)

// argString returns args[key] as a string, or an error if absent or not a
// string.
func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// argPosition extracts a query.Position from line/column numeric arguments.
// mcp-go decodes JSON numbers as float64, the same way encoding/json does
// for interface{} targets.
func argPosition(args map[string]any) (query.Position, error) {
	line, ok := args["line"].(float64)
	if !ok {
		return query.Position{}, fmt.Errorf("missing required argument %q", "line")
	}
	col, ok := args["column"].(float64)
	if !ok {
		return query.Position{}, fmt.Errorf("missing required argument %q", "column")
	}
	return query.Position{Line: uint32(line), Column: uint32(col)}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleOpenDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	uri, err := argString(args, "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := argString(args, "text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.docs.Open(uri, []byte(text)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("opened"), nil
}

func (s *Server) handleUpdateDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	uri, err := argString(args, "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := argString(args, "text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.docs.Update(uri, []byte(text), nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("updated"), nil
}

func (s *Server) handleCloseDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := argString(req.GetArguments(), "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.docs.Close(uri)
	return mcp.NewToolResultText("closed"), nil
}

func (s *Server) handleDefinition(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	uri, err := argString(args, "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := argPosition(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	locs, err := s.query.FindDefinitionsAtPosition(uri, pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(locs)
}

func (s *Server) handleReferences(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	uri, err := argString(args, "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := argPosition(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	locs, err := s.query.FindReferencesAtPosition(uri, pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(locs)
}

func (s *Server) handleHover(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	uri, err := argString(args, "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := argPosition(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hover, err := s.query.HoverAtPosition(uri, pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"content": hover.Content,
		"range":   hover.Range,
		"type":    hover.Type.String(),
	})
}

func (s *Server) handleCompletion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	uri, err := argString(args, "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := argPosition(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prefix, _ := args["prefix"].(string)

	items, err := s.query.CompletionsAtPosition(uri, pos, prefix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) handleDocumentSymbol(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := argString(req.GetArguments(), "uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.query.DocumentSymbols(uri))
}

func (s *Server) handleReindexFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := argString(req.GetArguments(), "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.coord.IncrementalUpdate(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("reindexed"), nil
}

func (s *Server) handleIndexingStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"run":   s.coord.Stats(),
		"index": s.idx.Stats(),
	})
}
