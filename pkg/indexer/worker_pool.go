package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/sorahex/rubylsp/pkg/filesrc"
)

// Job is a file to be parsed and processed by one worker-pool goroutine.
type Job struct {
	FilePath string
}

// Result is one successfully processed file.
type Result struct {
	FilePath string
}

// ProcessFunc runs one analysis pass (a definitions pass or a references
// pass) over a freshly parsed file. Implementations must not call
// tree.Close(): the WorkerPool owns the tree for the duration of the call
// and closes it once process returns.
type ProcessFunc func(filePath string, tree *ts.Tree, src []byte) error

// Parser is the subset of pkg/rparser.Manager a worker needs.
type Parser interface {
	Parse(source []byte) (*ts.Tree, error)
}

// WorkerPool runs ProcessFunc over a stream of file jobs using a fixed
// goroutine pool. ProcessFunc is arbitrary, so the same pool drives the
// project/stub/dependency definitions phases and the references phase
// alike.
type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	errors     chan FileError

	process ProcessFunc
	files   filesrc.Cache
	parser  Parser
	logger  *slog.Logger

	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a pool of numWorkers goroutines. The Coordinator
// sizes this to match pkg/rparser's own pool so parse concurrency and
// processing concurrency stay in lockstep.
func NewWorkerPool(numWorkers int, files filesrc.Cache, parser Parser, process ProcessFunc, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numWorkers*2),
		results:    make(chan Result, numWorkers),
		errors:     make(chan FileError, numWorkers),
		process:    process,
		files:      files,
		parser:     parser,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the worker goroutines. Must be called before Submit.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("worker pool already started")
		return
	}
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	src, err := wp.files.FetchCode(job.FilePath, 0, 0)
	if err != nil {
		wp.jobsFailed.Add(1)
		wp.errors <- FileError{FilePath: job.FilePath, Error: fmt.Errorf("read: %w", err)}
		return
	}

	tree, err := wp.parser.Parse([]byte(src))
	if err != nil {
		wp.jobsFailed.Add(1)
		wp.errors <- FileError{FilePath: job.FilePath, Error: fmt.Errorf("parse: %w", err)}
		return
	}
	defer tree.Close()

	if err := wp.process(job.FilePath, tree, []byte(src)); err != nil {
		wp.jobsFailed.Add(1)
		wp.errors <- FileError{FilePath: job.FilePath, Error: err}
		return
	}

	wp.jobsProcessed.Add(1)
	wp.results <- Result{FilePath: job.FilePath}
}

// Submit enqueues a job. Blocks if the jobs channel is full.
func (wp *WorkerPool) Submit(job Job) error {
	if wp.stopped.Load() {
		return fmt.Errorf("worker pool is stopped")
	}
	wp.jobsSubmitted.Add(1)
	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool cancelled")
	case wp.jobs <- job:
		return nil
	}
}

// Results returns the results channel.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.results
}

// Errors returns the errors channel.
func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the jobs channel. Idempotent.
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Wait blocks until every worker goroutine has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop shuts the pool down: closes jobs (if not already closed), waits for
// workers, then closes results/errors. Idempotent.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}
	wp.FinishSubmitting()
	wp.wg.Wait()
	close(wp.results)
	close(wp.errors)
	wp.cancel()
}
