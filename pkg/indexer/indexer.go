// Package indexer drives the eight-phase indexing pipeline that populates
// the Symbol Index from a project's Ruby source, its bundled stub set, and
// its external dependency trees.
//
// Scanning, worker dispatch, and file watching are split into their own
// files (scanner.go, worker_pool.go, watcher.go); storage lives entirely in
// pkg/symbolindex.Index, so this package owns orchestration only — phase
// sequencing, progress reporting, and incremental re-indexing.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/analyzer"
	"github.com/sorahex/rubylsp/pkg/ancestor"
	"github.com/sorahex/rubylsp/pkg/filesrc"
	"github.com/sorahex/rubylsp/pkg/poolsize"
	"github.com/sorahex/rubylsp/pkg/stubs"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// Coordinator drives the eight indexing phases, and the incremental
// single-file update algorithm for on-the-fly re-indexing after an edit.
type Coordinator struct {
	cfg Config

	idx      *symbolindex.Index
	analyzer *analyzer.Analyzer
	resolver *ancestor.Resolver
	files    filesrc.Cache
	parser   Parser
	sink     ProgressSink
	logger   *slog.Logger

	mu             sync.Mutex
	projectFiles   []string
	stubFiles      []string
	dependencyFiles []string
	stats          Stats
}

// New builds a Coordinator. sink may be nil (progress is then discarded).
func New(cfg Config, idx *symbolindex.Index, an *analyzer.Analyzer, resolver *ancestor.Resolver, files filesrc.Cache, parser Parser, sink ProgressSink, logger *slog.Logger) *Coordinator {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Exclude = append(append([]string{}, DefaultExcludes...), cfg.Exclude...)
	return &Coordinator{
		cfg:      cfg,
		idx:      idx,
		analyzer: an,
		resolver: resolver,
		files:    files,
		parser:   parser,
		sink:     sink,
		logger:   logger,
	}
}

// Stats returns a snapshot of the most recently completed (or in-progress)
// run's counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Coordinator) workers() int {
	return poolsize.OptimalOrOverride(c.cfg.Workers)
}

// Run executes all eight phases in order against cfg.ProjectRoot. It
// returns the first unrecoverable phase error (I/O enumeration failures);
// individual file analysis failures within a phase are logged and recorded
// in Stats.Errors but never abort the run.
func (c *Coordinator) Run(ctx context.Context) error {
	start := time.Now()
	c.mu.Lock()
	c.stats = Stats{StartTime: start}
	c.mu.Unlock()

	version, err := c.phaseVersionDetect()
	if err != nil {
		return c.fail(PhaseVersionDetect, err)
	}

	if err := c.phaseLibraryDiscovery(version); err != nil {
		return c.fail(PhaseLibraryDiscovery, err)
	}

	c.phaseDefinitions(ctx, PhaseProjectDefinitions, "project definitions", c.projectFiles, &c.stats.ProjectFilesIndexed)
	c.phaseDefinitions(ctx, PhaseStubDefinitions, "stub definitions", c.stubFiles, &c.stats.StubFilesIndexed)
	c.phaseDefinitions(ctx, PhaseDependencyDefinitions, "dependency definitions", c.dependencyFiles, &c.stats.DependencyFilesIndexed)

	c.phaseMixinResolution()

	c.phaseReferences(ctx)

	c.phaseCompletionTrie()

	c.mu.Lock()
	c.stats.EndTime = time.Now()
	c.stats.TotalTimeMs = c.stats.EndTime.Sub(c.stats.StartTime).Milliseconds()
	indexed := c.stats.ProjectFilesIndexed + c.stats.StubFilesIndexed + c.stats.DependencyFilesIndexed
	if c.stats.TotalTimeMs > 0 {
		c.stats.FilesPerSecond = float64(indexed) / (float64(c.stats.TotalTimeMs) / 1000.0)
	}
	c.mu.Unlock()

	return nil
}

func (c *Coordinator) fail(phase Phase, err error) error {
	c.emit(ProgressEvent{Phase: phase, Label: phase.String(), Err: err})
	return fmt.Errorf("indexer: %s: %w", phase, err)
}

func (c *Coordinator) phaseVersionDetect() (string, error) {
	version, err := stubs.DetectVersion(c.cfg.ProjectRoot, c.cfg.LanguageVersion)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.stats.LanguageVersion = version
	c.mu.Unlock()
	c.emit(ProgressEvent{Phase: PhaseVersionDetect, Label: "detected language version " + version, Percent: cumulative(PhaseVersionDetect)})
	return version, nil
}

func (c *Coordinator) phaseLibraryDiscovery(version string) error {
	projectFiles, err := discoverProjectFiles(c.cfg.ProjectRoot, c.cfg.Exclude)
	if err != nil {
		return fmt.Errorf("discover project files: %w", err)
	}

	var stubFiles []string
	if c.cfg.StubRoot != "" {
		lib, err := stubs.StubLibrary(c.cfg.StubRoot, version)
		if err != nil {
			return fmt.Errorf("discover stub library: %w", err)
		}
		stubFiles = lib.Files
	}

	var depFiles []string
	if c.cfg.DependencyRoot != "" {
		libs, err := stubs.DependencyLibraries(c.cfg.DependencyRoot)
		if err != nil {
			return fmt.Errorf("discover dependency libraries: %w", err)
		}
		for _, lib := range libs {
			depFiles = append(depFiles, lib.Files...)
		}
	}

	c.mu.Lock()
	c.projectFiles = projectFiles
	c.stubFiles = stubFiles
	c.dependencyFiles = depFiles
	c.stats.ProjectFilesDiscovered = len(projectFiles)
	c.stats.StubFilesDiscovered = len(stubFiles)
	c.stats.DependencyFilesDiscovered = len(depFiles)
	c.mu.Unlock()

	c.emit(ProgressEvent{
		Phase:   PhaseLibraryDiscovery,
		Label:   "discovered project/stub/dependency files",
		Percent: cumulative(PhaseLibraryDiscovery),
		Counter: len(projectFiles) + len(stubFiles) + len(depFiles),
	})
	return nil
}

// phaseDefinitions runs the Analyzer's definitions pass over files in
// parallel, tagging each Entry with the file's own path as its document.
func (c *Coordinator) phaseDefinitions(ctx context.Context, phase Phase, label string, files []string, indexedCounter *int) {
	process := func(path string, tree *ts.Tree, src []byte) error {
		c.analyzer.AnalyzeDefinitions(tree, src, path, c.idx)
		return nil
	}
	succeeded, _ := c.runParallel(ctx, phase, label, files, process)

	c.mu.Lock()
	*indexedCounter = succeeded
	c.mu.Unlock()
}

// phaseMixinResolution runs the Ancestor Resolver over every node currently
// in the index, flushing pending edges left by the three definitions
// phases above.
func (c *Coordinator) phaseMixinResolution() {
	c.resolver.LinearizeAll()
	c.emit(ProgressEvent{Phase: PhaseMixinResolution, Label: "linearized ancestor chains", Percent: cumulative(PhaseMixinResolution)})
}

// phaseReferences runs the Analyzer's references pass over project files
// only: stub/dependency files contribute definitions for resolution but are
// never themselves a source of use-site references.
func (c *Coordinator) phaseReferences(ctx context.Context) {
	process := func(path string, tree *ts.Tree, src []byte) error {
		c.analyzer.AnalyzeReferences(tree, src, path, c.idx)
		return nil
	}
	c.runParallel(ctx, PhaseReferences, "references", c.projectFiles, process)
}

// phaseCompletionTrie finalizes the run. The completion trie itself is
// already kept current incrementally (every InsertEntry call inserts into
// it), so this phase is a bookkeeping step that closes out the progress
// token with the final Entry count.
func (c *Coordinator) phaseCompletionTrie() {
	c.mu.Lock()
	c.stats.PhasesCompleted = int(PhaseCompletionTrie) + 1
	c.mu.Unlock()
	c.emit(ProgressEvent{
		Phase:   PhaseCompletionTrie,
		Label:   "completion trie ready",
		Percent: 100,
		Counter: int(c.idx.Stats().Entries),
	})
}

// runParallel processes files through process using a WorkerPool, starting
// the result collector before submitting any jobs to avoid the submit/
// collect deadlock a synchronous loop would hit once the buffered jobs
// channel fills.
func (c *Coordinator) runParallel(ctx context.Context, phase Phase, label string, files []string, process ProcessFunc) (succeeded, failed int) {
	if len(files) == 0 {
		c.emit(ProgressEvent{Phase: phase, Label: label, Percent: cumulative(phase), Total: 0})
		return 0, 0
	}

	pool := NewWorkerPool(c.workers(), c.files, c.parser, process, c.logger)
	pool.Start()

	total := len(files)
	done := make(chan struct{})
	var okCount, failCount int

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-pool.Results():
				if !ok {
					return
				}
				okCount++
				c.emit(ProgressEvent{Phase: phase, Label: label, Percent: cumulative(phase), Counter: okCount + failCount, Total: total})
			case ferr, ok := <-pool.Errors():
				if !ok {
					return
				}
				failCount++
				c.mu.Lock()
				// A file that already failed in an earlier phase is counted once.
				seen := false
				for _, prev := range c.stats.Errors {
					if prev.FilePath == ferr.FilePath {
						seen = true
						break
					}
				}
				if !seen {
					c.stats.FilesFailed++
					c.stats.Errors = append(c.stats.Errors, ferr)
				}
				c.mu.Unlock()
				c.logger.Warn("indexer: file failed", "phase", label, "file", ferr.FilePath, "error", ferr.Error)
			}
			if okCount+failCount >= total {
				return
			}
		}
	}()

	for _, f := range files {
		if err := pool.Submit(Job{FilePath: f}); err != nil {
			c.logger.Warn("indexer: submit failed", "file", f, "error", err)
		}
	}
	pool.FinishSubmitting()
	<-done
	pool.Stop()

	return okCount, failCount
}

func (c *Coordinator) emit(ev ProgressEvent) {
	c.sink.Progress(ev)
}

// cumulative returns the cumulative percent-of-whole-run completed once
// phase itself finishes, by summing phaseWeight for every phase up to and
// including it.
func cumulative(upTo Phase) float64 {
	var sum float64
	for p := PhaseVersionDetect; p <= upTo; p++ {
		sum += phaseWeight[p]
	}
	return sum
}

// IncrementalUpdate re-indexes a single changed project file: removes its
// prior contribution, re-runs both analysis passes, and marks dirty any
// ancestor chain whose direct edges this file's owners may have changed.
func (c *Coordinator) IncrementalUpdate(path string) error {
	// Owners from before the update, so that an owner whose edges were all
	// removed still has its chain marked dirty.
	stale := c.idx.TouchedOwners(path)
	c.idx.RemoveByLocation(path)

	if err := c.files.Invalidate(path); err != nil {
		return fmt.Errorf("indexer: invalidate %q: %w", path, err)
	}

	src, err := c.files.FetchCode(path, 0, 0)
	if err != nil {
		return fmt.Errorf("indexer: read %q: %w", path, err)
	}
	tree, err := c.parser.Parse([]byte(src))
	if err != nil {
		return fmt.Errorf("indexer: parse %q: %w", path, err)
	}
	defer tree.Close()

	c.analyzer.AnalyzeDefinitions(tree, []byte(src), path, c.idx)

	for _, owner := range append(stale, c.idx.TouchedOwners(path)...) {
		c.resolver.MarkDirty(owner)
	}

	c.analyzer.AnalyzeReferences(tree, []byte(src), path, c.idx)
	return nil
}
