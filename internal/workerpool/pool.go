// Package workerpool implements the fixed-size pool of worker goroutines
// that execute Upload, Download, and Delete transfers dispatched by the
// coordinator over a single shared channel.
package workerpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	stdsync "sync"
	"sync/atomic"

	"github.com/syncagent/syncagent/internal/chunker"
	"github.com/syncagent/syncagent/internal/conflict"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/remoteapi"
	"github.com/syncagent/syncagent/internal/transfer"
)

// minWorkers is the floor for total worker count.
const minWorkers = 4

// maxRecordedErrors bounds the diagnostic error slice so long-running watch
// mode has bounded memory; the failed counter stays accurate regardless.
const maxRecordedErrors = 1000

// KeyProvider supplies the data encryption key. Satisfied by
// *keystore.LocalStore without that package needing to depend on this one.
type KeyProvider interface {
	Key() ([]byte, error)
}

// ResultSink receives a Task's terminal outcome. Satisfied by the
// coordinator; defined here (the consumer) per the narrow-interface
// convention used throughout this codebase.
type ResultSink interface {
	ReportResult(result transfer.Result)
}

// ProgressSample reports incremental transfer progress for the status
// reporter.
type ProgressSample struct {
	Path             string
	BytesTransferred int64
	ChunkIndex       int
	TotalChunks      int
}

// Pool is a fixed-size set of worker goroutines pulling Tasks from a single
// channel fed by the coordinator.
type Pool struct {
	syncRoot string
	store    localstate.Store
	meta     remoteapi.MetadataClient
	chunks   remoteapi.ChunkClient
	keys     KeyProvider
	splitter *chunker.Splitter
	resolver *conflict.Resolver
	sink     ResultSink
	logger   *slog.Logger

	tasks    chan transfer.Task
	progress chan ProgressSample

	succeeded     atomic.Int32
	failed        atomic.Int32
	errors        []error
	errorsMu      stdsync.Mutex
	droppedErrors atomic.Int64

	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// New creates a Pool. taskBuf sizes the task channel buffer.
func New(syncRoot string, store localstate.Store, meta remoteapi.MetadataClient, chunks remoteapi.ChunkClient, keys KeyProvider, splitter *chunker.Splitter, resolver *conflict.Resolver, sink ResultSink, logger *slog.Logger, taskBuf int) *Pool {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if taskBuf < 1 {
		taskBuf = 1
	}

	return &Pool{
		syncRoot: syncRoot,
		store:    store,
		meta:     meta,
		chunks:   chunks,
		keys:     keys,
		splitter: splitter,
		resolver: resolver,
		sink:     sink,
		logger:   logger,
		tasks:    make(chan transfer.Task, taskBuf),
		progress: make(chan ProgressSample, 256),
	}
}

// fullPath resolves a task's sync-root-relative path to an absolute
// filesystem path.
func (p *Pool) fullPath(relPath string) string {
	return filepath.Join(p.syncRoot, relPath)
}

// Start spawns total worker goroutines (floor minWorkers).
func (p *Pool) Start(ctx context.Context, total int) {
	if total < minWorkers {
		total = minWorkers
	}

	ctx, p.cancel = context.WithCancel(ctx)

	for range total {
		p.wg.Add(1)

		go p.worker(ctx)
	}

	p.logger.Info("workerpool: started", slog.Int("workers", total))
}

// Stop cancels in-flight work and waits for every worker goroutine to exit.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}

	p.wg.Wait()
}

// Submit hands a Task to the pool (implements coordinator.Dispatcher).
func (p *Pool) Submit(ctx context.Context, task transfer.Task) {
	select {
	case p.tasks <- task:
	case <-ctx.Done():
	}
}

// Progress returns the channel on which progress samples are published.
func (p *Pool) Progress() <-chan ProgressSample {
	return p.progress
}

// Stats returns execution counters and any recorded errors.
func (p *Pool) Stats() (succeeded, failed int, errs []error) {
	p.errorsMu.Lock()
	defer p.errorsMu.Unlock()

	out := make([]error, len(p.errors))
	copy(out, p.errors)

	return int(p.succeeded.Load()), int(p.failed.Load()), out
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}

			p.safeExecute(ctx, task)
		}
	}
}

// safeExecute wraps execute with panic recovery so a single task's panic
// does not crash the daemon.
func (p *Pool) safeExecute(ctx context.Context, task transfer.Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("workerpool: panic in task execution",
				slog.String("path", task.Path), slog.Any("panic", r))

			err := fmt.Errorf("panic: %v", r)
			p.recordFailure(err)
			p.sink.ReportResult(transfer.Result{Path: task.Path, Kind: task.Kind, Outcome: transfer.Failed, FailureKind: transfer.FailureFatal, Err: err})
		}
	}()

	p.execute(ctx, task)
}

func (p *Pool) execute(ctx context.Context, task transfer.Task) {
	var result transfer.Result

	switch task.Kind {
	case transfer.Upload:
		result = p.runUpload(ctx, task)
	case transfer.Download:
		result = p.runDownload(ctx, task)
	case transfer.Delete:
		result = p.runDelete(ctx, task)
	default:
		result = transfer.Result{Path: task.Path, Kind: task.Kind, Outcome: transfer.Failed, FailureKind: transfer.FailureFatal, Err: fmt.Errorf("workerpool: unknown task kind %q", task.Kind)}
	}

	switch result.Outcome {
	case transfer.Completed:
		p.succeeded.Add(1)
	case transfer.Failed:
		p.failed.Add(1)

		if result.Err != nil {
			p.recordFailure(result.Err)
		}
	}

	p.sink.ReportResult(result)
}

func (p *Pool) recordFailure(err error) {
	p.errorsMu.Lock()
	defer p.errorsMu.Unlock()

	if len(p.errors) >= maxRecordedErrors {
		p.droppedErrors.Add(1)
		return
	}

	p.errors = append(p.errors, err)
}

func (p *Pool) emitProgress(sample ProgressSample) {
	select {
	case p.progress <- sample:
	default:
		// Progress is best-effort observability; a full buffer means the
		// status reporter is lagging, never block a transfer on it.
	}
}

func isCancelled(task transfer.Task) bool {
	return task.Cancel != nil && task.Cancel.Load()
}
