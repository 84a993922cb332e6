package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/doccache"
	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/indexer"
	"github.com/sorahex/rubylsp/pkg/lspio"
	"github.com/sorahex/rubylsp/pkg/mcplog"
	"github.com/sorahex/rubylsp/pkg/query"
	"github.com/sorahex/rubylsp/pkg/rlslog"
	"github.com/sorahex/rubylsp/pkg/rparser"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "serve":
		runServe(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "setup":
		runSetup(os.Args[2:])
	case "version":
		fmt.Printf("rubylsp %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// logSink logs each phase transition at debug level. Used by "index", which
// has no editor-protocol client to notify.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) Progress(ev indexer.ProgressEvent) {
	if ev.Err != nil {
		s.logger.Warn("index: phase error", "phase", ev.Phase.String(), "error", ev.Err)
		return
	}
	s.logger.Debug("index: phase progress", "phase", ev.Phase.String(), "label", ev.Label, "percent", ev.Percent)
}

func runIndex(args []string) {
	f := parseServeFlags(args)
	logger := rlslog.New(resolveLogConfig(f))

	files := filesrc.New(filesrc.DefaultConfig())
	defer files.Close()

	parser := rparser.NewManager(logger, f.workers)
	defer parser.Close()

	idx := symbolindex.New(logger)
	az := analyzer.New(logger)
	resolver := ancestor.New(idx, logger)

	ic := resolveIndexerConfig(f)
	coord := indexer.New(ic, idx, az, resolver, files, parser, logSink{logger: logger}, logger)

	if err := coord.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "index: %v\n", err)
		os.Exit(1)
	}

	stats := coord.Stats()
	fmt.Printf("indexed %d project file(s), %d stub(s), %d dependency file(s); %d failed\n",
		stats.ProjectFilesIndexed, stats.StubFilesIndexed, stats.DependencyFilesIndexed, stats.FilesFailed)
	for _, ferr := range stats.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", ferr.FilePath, ferr.Error)
	}
	if stats.FilesFailed > 0 {
		os.Exit(2)
	}
}

// runServe builds the full pipeline and serves it over MCP on stdio. The
// initial indexing pass runs before ServeStdio, with no MCP client attached
// yet, so it uses a discarding sink rather than the Server's
// indexing_progress notifier: there's nobody to notify. Only reindex_file's
// incremental path runs while a client may be listening, and
// indexer.Coordinator.IncrementalUpdate doesn't emit phase events at all —
// it re-analyzes one file directly, skipping the phased full-scan machinery
// that progress events describe.
func runServe(args []string) {
	f := parseServeFlags(args)
	logger := rlslog.New(resolveLogConfig(f))

	mlog, err := mcplog.NewLogger(resolveCallLogPath(f))
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		os.Exit(1)
	}

	files := filesrc.New(filesrc.DefaultConfig())
	defer files.Close()

	parser := rparser.NewManager(logger, f.workers)
	defer parser.Close()

	idx := symbolindex.New(logger)
	az := analyzer.New(logger)
	resolver := ancestor.New(idx, logger)

	ic := resolveIndexerConfig(f)
	coord := indexer.New(ic, idx, az, resolver, files, parser, nil, logger)

	if err := coord.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "serve: initial index: %v\n", err)
		os.Exit(1)
	}

	docs, err := doccache.New(parser, az, doccache.DefaultConfig(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		os.Exit(1)
	}

	layer := query.New(idx, docs, resolver, logger)
	srv := lspio.NewServer(layer, docs, coord, idx, mlog, logger)
	defer srv.Close()

	if f.watch {
		watcher, err := indexer.NewWatcher(coord, idx, indexer.DefaultWatchOptions(), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "serve: %v\n", err)
			os.Exit(1)
		}
		if err := watcher.Start(f.projectRoot); err != nil {
			fmt.Fprintf(os.Stderr, "serve: %v\n", err)
			os.Exit(1)
		}
		defer watcher.Stop()
	}

	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: rubylsp <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Start the MCP server (add --watch to reindex on file changes)")
	fmt.Println("  index      Run one indexing pass and print a summary")
	fmt.Println("  inspect    Print a symbol's definition, ancestors, and members")
	fmt.Println("  setup      Register rubylsp with detected AI coding agents")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("serve/index flags:")
	fmt.Println("  --project-root <dir>       project root to index (default \".\")")
	fmt.Println("  --stub-dir <dir>           stdlib stub root")
	fmt.Println("  --dependency-dir <dir>     external dependency source root")
	fmt.Println("  --language-version <ver>   override .ruby-version detection")
	fmt.Println("  --workers <n>              indexing/parsing worker count")
	fmt.Println("  --log-level <level>        debug|info|warn|error")
	fmt.Println("  --log-format <format>      json|text")
	fmt.Println("  --call-log <path>          JSONL path for MCP tool-call logging")
}
