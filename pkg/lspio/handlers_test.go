package lspio

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, s *Server, req mcp.CallToolRequest) *mcp.CallToolResult {
	t.Helper()
	var handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

	switch req.Params.Name {
	case "open_document":
		handler = s.handleOpenDocument
	case "update_document":
		handler = s.handleUpdateDocument
	case "close_document":
		handler = s.handleCloseDocument
	case "definition":
		handler = s.handleDefinition
	case "references":
		handler = s.handleReferences
	case "hover":
		handler = s.handleHover
	case "completion":
		handler = s.handleCompletion
	case "document_symbol":
		handler = s.handleDocumentSymbol
	case "reindex_file":
		handler = s.handleReindexFile
	case "indexing_stats":
		handler = s.handleIndexingStats
	default:
		t.Fatalf("unknown tool: %s", req.Params.Name)
	}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func makeRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	var arguments any
	if args != nil {
		arguments = args
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

const dogSource = `class Dog < Animal
  def bark
    "Woof"
  end
end
`

func TestHandleOpenAndCloseDocument(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	uri := uriFor(t, s, "dog.rb")
	s.docs.Close(uri) // start from closed so Open below is exercised cleanly

	result := callTool(t, s, makeRequest("open_document", map[string]any{"uri": uri, "text": dogSource}))
	assert.False(t, result.IsError)
	assert.True(t, s.docs.IsOpen(uri))

	result = callTool(t, s, makeRequest("close_document", map[string]any{"uri": uri}))
	assert.False(t, result.IsError)
	assert.False(t, s.docs.IsOpen(uri))
}

func TestHandleUpdateDocument(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	uri := uriFor(t, s, "dog.rb")

	newSource := "class Dog < Animal\n  def bark\n    \"Bork\"\n  end\nend\n"
	result := callTool(t, s, makeRequest("update_document", map[string]any{"uri": uri, "text": newSource}))
	assert.False(t, result.IsError)

	snap, ok := s.docs.Get(uri)
	require.True(t, ok)
	assert.Equal(t, newSource, string(snap.Text))
}

func TestHandleUpdateDocument_NotOpen(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	result := callTool(t, s, makeRequest("update_document", map[string]any{
		"uri":  filepath.Join(t.TempDir(), "never-opened.rb"),
		"text": "class X\nend\n",
	}))
	assert.True(t, result.IsError)
}

func TestHandleDefinition_MethodCallResolvesToOwnerMethod(t *testing.T) {
	source := "class Dog\n  def bark\n    \"Woof\"\n  end\n\n  def speak\n    bark\n  end\nend\n"
	s := newTestServer(t, map[string]string{"dog.rb": source})
	uri := uriFor(t, s, "dog.rb")
	line, col := positionAt(t, source, "bark\n  end\nend")

	result := callTool(t, s, makeRequest("definition", map[string]any{"uri": uri, "line": line, "column": col}))
	assert.False(t, result.IsError)

	var locs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &locs))
	require.NotEmpty(t, locs)
	assert.Equal(t, float64(2), locs[0]["StartLine"])
}

func TestHandleHover_ReturnsDocCommentAndType(t *testing.T) {
	source := "# Loud.\nclass Dog\n  def bark\n    \"Woof\"\n  end\nend\n"
	s := newTestServer(t, map[string]string{"dog.rb": source})
	uri := uriFor(t, s, "dog.rb")
	line, col := positionAt(t, source, "Dog")

	result := callTool(t, s, makeRequest("hover", map[string]any{"uri": uri, "line": line, "column": col}))
	assert.False(t, result.IsError)

	var hover map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &hover))
	assert.Contains(t, hover["content"], "Loud")
	assert.Equal(t, "Dog", hover["type"])
}

func TestHandleCompletion_RanksOwnMethodFirst(t *testing.T) {
	source := "class Dog\n  def bark\n  end\n\n  def bork\n  end\n\n  def speak\n    ba\n  end\nend\n"
	s := newTestServer(t, map[string]string{"dog.rb": source})
	uri := uriFor(t, s, "dog.rb")
	line, col := positionAt(t, source, "ba\n  end\nend")

	result := callTool(t, s, makeRequest("completion", map[string]any{"uri": uri, "line": line, "column": col, "prefix": "ba"}))
	assert.False(t, result.IsError)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &items))
	require.NotEmpty(t, items)
	assert.Equal(t, "bark", items[0]["Name"])
}

func TestHandleDocumentSymbol_ListsDefinitions(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	uri := uriFor(t, s, "dog.rb")

	result := callTool(t, s, makeRequest("document_symbol", map[string]any{"uri": uri}))
	assert.False(t, result.IsError)

	var symbols []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &symbols))
	require.NotEmpty(t, symbols)
}

func TestHandleReindexFile(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	uri := uriFor(t, s, "dog.rb")

	result := callTool(t, s, makeRequest("reindex_file", map[string]any{"path": uri}))
	assert.False(t, result.IsError)
}

func TestHandleReindexFile_MissingPath(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	result := callTool(t, s, makeRequest("reindex_file", nil))
	assert.True(t, result.IsError)
}

func TestHandleIndexingStats(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	result := callTool(t, s, makeRequest("indexing_stats", nil))
	assert.False(t, result.IsError)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &stats))
	assert.Contains(t, stats, "run")
	assert.Contains(t, stats, "index")
}
