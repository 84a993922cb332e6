package lspio

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sorahex/rubylsp/pkg/mcplog"
)

// slowToolCallMs is the latency an editor-facing tool call can exceed before
// it gets logged as a warning on the side channel, independent of whether
// JSONL call logging is enabled. Editors block the cursor on these calls, so
// a query running past this budget is worth surfacing even without tailing
// the log file.
const slowToolCallMs = 500

// loggingMiddleware returns a ToolHandlerMiddleware that records every tool
// call as a JSONL entry via the server's logger, and escalates calls slower
// than slowToolCallMs to a warning log line naming the offending tool and
// (when the call carries a uri/path argument) the document it touched. If
// the logger is nil this method must not be called (guarded by the
// NewServer caller).
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)
			elapsed := time.Since(start).Milliseconds()

			args := req.GetArguments()
			file := mcplog.ExtractFile(args)

			rb := mcplog.ResponseBytes(result)
			var errStr *string
			if err != nil {
				msg := err.Error()
				errStr = &msg
			}

			entry := mcplog.LogEntry{
				Ts:            start.UTC().Format(time.RFC3339),
				Tool:          req.Params.Name,
				File:          file,
				Params:        mcplog.SanitizeParams(args),
				DurationMs:    elapsed,
				ResponseBytes: rb,
				TokensEst:     rb / 4,
				Error:         errStr,
			}
			_ = s.logger.Write(entry)

			if elapsed > slowToolCallMs {
				s.slog.Warn("lspio: slow tool call", "tool", req.Params.Name, "file", file, "duration_ms", elapsed)
			}

			return result, err
		}
	}
}
