package lspio

import "github.com/mark3labs/mcp-go/mcp"

// openDocumentTool registers a document's initial text, parsing it and
// building its scope tree (doccache.Cache.Open). The position-based query
// tools below only operate on documents that have been opened this way.
func openDocumentTool() mcp.Tool {
	return mcp.NewTool("open_document",
		mcp.WithDescription("Open a document for position-based queries, parsing its full text"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Document identifier, typically a file path")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full document text")),
	)
}

// updateDocumentTool replaces an open document's text and reparses it.
// Incremental tree-sitter edits are an internal detail of doccache; the
// tool surface only ever sends the new full text, matching how the rest of
// this server's tools take whole values rather than deltas.
func updateDocumentTool() mcp.Tool {
	return mcp.NewTool("update_document",
		mcp.WithDescription("Replace an open document's text and reparse it"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Document identifier")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New full document text")),
	)
}

func closeDocumentTool() mcp.Tool {
	return mcp.NewTool("close_document",
		mcp.WithDescription("Close a document, retaining its parsed state for a fast reopen"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Document identifier")),
	)
}

func positionArgs(t *mcp.Tool) {
	mcp.WithString("uri", mcp.Required(), mcp.Description("Document identifier"))(t)
	mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number"))(t)
	mcp.WithNumber("column", mcp.Required(), mcp.Description("1-based column number"))(t)
}

func definitionTool() mcp.Tool {
	t := mcp.NewTool("definition", mcp.WithDescription("Find the definition(s) of the identifier at a position"))
	positionArgs(&t)
	return t
}

func referencesTool() mcp.Tool {
	t := mcp.NewTool("references", mcp.WithDescription("Find every reference to the identifier at a position"))
	positionArgs(&t)
	return t
}

func hoverTool() mcp.Tool {
	t := mcp.NewTool("hover", mcp.WithDescription("Return doc comment and inferred type for the identifier at a position"))
	positionArgs(&t)
	return t
}

func completionTool() mcp.Tool {
	t := mcp.NewTool("completion", mcp.WithDescription("Return ranked completion candidates at a position"))
	positionArgs(&t)
	mcp.WithString("prefix", mcp.Description("Partial identifier text already typed"))(&t)
	return t
}

func documentSymbolTool() mcp.Tool {
	return mcp.NewTool("document_symbol",
		mcp.WithDescription("List every symbol defined in a document, in source order"),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Document identifier")),
	)
}

func reindexFileTool() mcp.Tool {
	return mcp.NewTool("reindex_file",
		mcp.WithDescription("Re-index a single project file after an on-disk change"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the changed file")),
	)
}

func indexingStatsTool() mcp.Tool {
	return mcp.NewTool("indexing_stats",
		mcp.WithDescription("Return the most recent indexing run's counters plus the live Symbol Index counts"),
	)
}
