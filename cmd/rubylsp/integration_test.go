package main

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryPath is set by TestMain after building the binary.
var binaryPath string

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION") == "" {
		// Run non-integration tests normally.
		os.Exit(m.Run())
	}

	// Build the binary once for all integration tests.
	tmp, err := os.MkdirTemp("", "rubylsp-integration-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	binaryPath = filepath.Join(tmp, "rubylsp")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

// --- helpers ---

func skipIfNotIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}
}

// writeProject lays out a tiny Ruby project under a temp directory and
// returns its root.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := "class Animal\n  def speak\n    \"...\"\n  end\nend\n\nclass Dog < Animal\n  def speak\n    \"Woof\"\n  end\n\n  def fetch\n    speak\n  end\nend\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "animals.rb"), []byte(src), 0644))
	return root
}

// startServer launches `rubylsp serve` rooted at dir and returns an
// initialized MCP client.
func startServer(t *testing.T, dir string) *client.Client {
	t.Helper()

	c, err := client.NewStdioMCPClient(binaryPath, nil, "serve", "--project-root", dir)
	require.NoError(t, err, "failed to start MCP server")

	t.Cleanup(func() {
		c.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "rubylsp-integration-test",
		Version: "1.0.0",
	}

	result, err := c.Initialize(ctx, initReq)
	require.NoError(t, err, "failed to initialize MCP session")
	assert.Equal(t, "rubylsp", result.ServerInfo.Name)

	return c
}

func callToolHelper(t *testing.T, c *client.Client, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	if args != nil {
		req.Params.Arguments = args
	}

	result, err := c.CallTool(ctx, req)
	require.NoError(t, err, "CallTool(%s) failed", toolName)
	return result
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected content in result")
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

// --- integration tests ---

func TestIntegration_ListTools(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t, writeProject(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)

	toolNames := make([]string, len(tools.Tools))
	for i, tool := range tools.Tools {
		toolNames[i] = tool.Name
	}

	expected := []string{
		"open_document",
		"update_document",
		"close_document",
		"definition",
		"references",
		"hover",
		"completion",
		"document_symbol",
		"reindex_file",
		"indexing_stats",
	}
	for _, name := range expected {
		assert.Contains(t, toolNames, name, "missing tool: %s", name)
	}
}

func TestIntegration_IndexingStats(t *testing.T) {
	skipIfNotIntegration(t)
	c := startServer(t, writeProject(t))

	result := callToolHelper(t, c, "indexing_stats", nil)
	assert.False(t, result.IsError)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &stats))
	assert.Contains(t, stats, "run")
	assert.Contains(t, stats, "index")
}

func TestIntegration_DefinitionAndHover(t *testing.T) {
	skipIfNotIntegration(t)
	root := writeProject(t)
	c := startServer(t, root)

	uri := filepath.Join(root, "animals.rb")
	text, err := os.ReadFile(uri)
	require.NoError(t, err)

	openResult := callToolHelper(t, c, "open_document", map[string]any{"uri": uri, "text": string(text)})
	assert.False(t, openResult.IsError)

	// "speak" on line 13 (Dog#fetch's call) should resolve to Dog#speak.
	result := callToolHelper(t, c, "definition", map[string]any{"uri": uri, "line": 13, "column": 5})
	assert.False(t, result.IsError)

	var locs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &locs))
	assert.NotEmpty(t, locs)

	hoverResult := callToolHelper(t, c, "hover", map[string]any{"uri": uri, "line": 7, "column": 7})
	assert.False(t, hoverResult.IsError)
}
