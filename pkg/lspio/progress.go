package lspio

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/sorahex/rubylsp/pkg/indexer"
)

// notifyingSink forwards an indexer.Coordinator's phase events to every
// connected MCP client as an "indexing_progress" notification. This is how
// the Coordinator's ProgressSink abstraction (pkg/indexer/types.go) reaches
// the editor: the Coordinator itself stays transport-agnostic, and this is
// the one place transport-specific forwarding happens.
type notifyingSink struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

func (n *notifyingSink) Progress(ev indexer.ProgressEvent) {
	params := map[string]any{
		"phase":   ev.Phase.String(),
		"label":   ev.Label,
		"percent": ev.Percent,
	}
	if ev.Counter != 0 || ev.Total != 0 {
		params["counter"] = ev.Counter
		params["total"] = ev.Total
	}
	if ev.Err != nil {
		params["error"] = ev.Err.Error()
	}

	if err := n.mcpServer.SendNotificationToAllClients("indexing_progress", params); err != nil {
		n.logger.Warn("lspio: failed to send indexing_progress notification", "error", err)
	}
}
