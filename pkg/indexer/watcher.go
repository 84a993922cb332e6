package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches a project root for *.rb changes and drives the
// Coordinator's incremental update algorithm, debouncing rapid-fire edits
// to the same file into a single re-index.
type Watcher struct {
	fsw   *fsnotify.Watcher
	coord *Coordinator
	idx   removeByLocationer
	opts  WatchOptions
	root  string

	logger *slog.Logger

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
}

// removeByLocationer is the subset of *symbolindex.Index a Watcher needs
// for a delete event, kept as an interface to avoid importing the concrete
// package just for this one call.
type removeByLocationer interface {
	RemoveByLocation(document string)
}

// WatchOptions configures debouncing and ignore patterns for a Watcher.
type WatchOptions struct {
	// DebounceMs groups rapid-fire writes to the same file into a single
	// reindex. Default 200ms.
	DebounceMs int

	// IgnorePatterns are doublestar glob patterns (forward-slash,
	// relative to the watched root) additional to DefaultExcludes.
	IgnorePatterns []string
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{DebounceMs: 200}
}

// NewWatcher creates a Watcher driving coord's incremental updates.
func NewWatcher(coord *Coordinator, idx removeByLocationer, opts WatchOptions, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("indexer: create file watcher: %w", err)
	}
	if opts.DebounceMs == 0 {
		opts.DebounceMs = 200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsw:            fsw,
		coord:          coord,
		idx:            idx,
		opts:           opts,
		logger:         logger,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start begins watching root and its subdirectories in the background.
func (w *Watcher) Start(root string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("indexer: watcher already stopped")
	}
	w.root = root
	w.mu.Unlock()

	if err := addRecursive(w.fsw, root, w.shouldIgnore); err != nil {
		return fmt.Errorf("indexer: watch %s: %w", root, err)
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher and releases its fsnotify resources. Idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("indexer: watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}
	if filepath.Ext(event.Name) != ".rb" {
		return
	}

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write, event.Op&fsnotify.Create == fsnotify.Create:
		w.debounceReindex(event.Name)
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		w.idx.RemoveByLocation(event.Name)
	}
}

func (w *Watcher) debounceReindex(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(time.Duration(w.opts.DebounceMs)*time.Millisecond, func() {
		if err := w.coord.IncrementalUpdate(path); err != nil {
			w.logger.Warn("indexer: incremental update failed", "file", path, "error", err)
		}
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range DefaultExcludes {
		if matched, _ := doublestar.PathMatch(pattern, rel); matched {
			return true
		}
	}
	for _, pattern := range w.opts.IgnorePatterns {
		if matched, _ := doublestar.PathMatch(pattern, rel); matched {
			return true
		}
	}
	return false
}

// addRecursive walks root adding every non-ignored directory to fsw.
// fsnotify watches are not recursive, so every subdirectory needs its own
// explicit Add call.
func addRecursive(fsw *fsnotify.Watcher, root string, ignore func(string) bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries, keep walking
		}
		if !info.IsDir() {
			return nil
		}
		if ignore(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
