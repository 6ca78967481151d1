// Package coordinator implements the single logical consumer of the event
// queue: for each event it evaluates the decision matrix
// against any active Transfer on that path, dispatches to the worker pool,
// and on terminal outcomes persists state, advances the remote change
// cursor, and requeues bookkeeping/conflict-followup events.
package coordinator

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/syncagent/syncagent/internal/event"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/queue"
	"github.com/syncagent/syncagent/internal/transfer"
)

// Dispatcher hands a Task to the worker pool. Satisfied by
// *workerpool.Pool; defined here (the consumer) so neither package imports
// the other.
type Dispatcher interface {
	Submit(ctx context.Context, task transfer.Task)
}

// activeTransfer tracks one in-flight Transfer on a path.
type activeTransfer struct {
	kind   transfer.Kind
	cancel *atomic.Bool
	origin event.Event

	// pendingReplacement holds an event that arrived while this transfer was
	// active and triggered CANCEL_AND_REQUEUE; it is requeued only once this
	// transfer reaches a terminal outcome.
	pendingReplacement *event.Event
}

// Coordinator is the decision-matrix-driven dispatcher.
type Coordinator struct {
	syncRoot   string
	queue      *queue.Queue
	store      localstate.Store
	dispatcher Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	active  map[string]*activeTransfer
	batches []*batchTracker
}

// New creates a Coordinator.
func New(syncRoot string, q *queue.Queue, store localstate.Store, dispatcher Dispatcher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coordinator{
		syncRoot:   syncRoot,
		queue:      q,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		active:     make(map[string]*activeTransfer),
	}
}

// Run consumes events from the queue until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		evt, ok := c.queue.Take(ctx)
		if !ok {
			return ctx.Err()
		}

		c.handleEvent(ctx, evt)
	}
}

func (c *Coordinator) handleEvent(ctx context.Context, evt event.Event) {
	if evt.Type.IsTransfer() {
		return // bookkeeping-only event, nothing to dispatch
	}

	c.mu.Lock()

	at, hasActive := c.active[evt.Path]

	var activeKind transfer.Kind
	if hasActive {
		activeKind = at.kind
	}

	switch decide(evt.Type, activeKind, hasActive) {
	case ActionIgnore, ActionMarkConflict, ActionCreateConflictCopy:
		// These either drop the event (already-running
		// upload will push local changes anyway) or let the in-flight
		// transfer continue and surface the conflict at its own commit
		// step — no coordinator-side action needed here.
		c.mu.Unlock()

	case ActionCancelAndRequeue:
		at.cancel.Store(true)
		at.pendingReplacement = &evt
		c.mu.Unlock()

	case ActionDispatch:
		kind, ok := kindForEvent(evt.Type)
		if !ok {
			c.mu.Unlock()
			c.logger.Warn("coordinator: no worker kind for event, dropping", slog.String("type", string(evt.Type)), slog.String("path", evt.Path))

			return
		}

		cancel := &atomic.Bool{}
		c.active[evt.Path] = &activeTransfer{kind: kind, cancel: cancel, origin: evt}
		c.mu.Unlock()

		parentVersion := evt.Metadata.ParentVersion
		if parentVersion == nil && evt.Type.IsLocal() {
			// The detector does not stamp a server version on local events;
			// the path's synced record holds the version the local copy
			// descends from.
			if rec, err := c.store.GetSyncedFileRecord(ctx, evt.Path); err == nil && rec != nil {
				v := rec.ServerVersion
				parentVersion = &v
			}
		}

		c.dispatcher.Submit(ctx, transfer.Task{
			Path:          evt.Path,
			Kind:          kind,
			Event:         evt,
			Cancel:        cancel,
			ParentVersion: parentVersion,
		})
	}
}

// kindForEvent maps an originating event type to the worker kind it implies.
func kindForEvent(t event.Type) (transfer.Kind, bool) {
	switch t {
	case event.LocalCreated, event.LocalModified:
		return transfer.Upload, true
	case event.LocalDeleted, event.RemoteDeleted:
		return transfer.Delete, true
	case event.RemoteCreated, event.RemoteModified:
		return transfer.Download, true
	default:
		return "", false
	}
}

// ReportResult implements workerpool.ResultSink: it clears the path's active
// Transfer, advances the remote change cursor when appropriate, queues any
// conflict follow-up work, and finally dispatches a pending replacement
// event that was held back by a CANCEL_AND_REQUEUE decision.
func (c *Coordinator) ReportResult(result transfer.Result) {
	ctx := context.Background()

	c.mu.Lock()
	at, ok := c.active[result.Path]
	delete(c.active, result.Path)
	c.mu.Unlock()

	if ok && at.origin.Type.IsRemote() {
		c.advanceCursorIfBatchComplete(ctx)
	}

	c.queue.Put(event.NewEvent(bookkeepingType(result.Outcome), result.Path, event.Metadata{}))

	if result.Outcome == transfer.Conflict {
		c.handleConflict(result)
	}

	if ok && at.pendingReplacement != nil {
		// Restamp the held-back event so the queue's timestamp tie-break
		// prefers it over the bookkeeping event just queued for the same path.
		replacement := *at.pendingReplacement
		c.queue.Put(event.NewEvent(replacement.Type, replacement.Path, replacement.Metadata))
	}
}

func bookkeepingType(outcome transfer.Outcome) event.Type {
	switch outcome {
	case transfer.Completed:
		return event.TransferCompleted
	case transfer.Cancelled:
		return event.TransferCancelled
	default:
		return event.TransferFailed
	}
}

// handleConflict implements the Server-Wins + Local-Preserved follow-up: the
// conflict copy gets queued as a new local file, and the original path is
// requeued as a remote change so the server's version gets downloaded into
// the now-vacated spot.
func (c *Coordinator) handleConflict(result transfer.Result) {
	if result.ConflictPath != "" {
		if rel, err := filepath.Rel(c.syncRoot, result.ConflictPath); err == nil {
			c.queue.Put(event.NewEvent(event.LocalCreated, filepath.ToSlash(rel), event.Metadata{}))
		}
	}

	c.queue.Put(event.NewEvent(event.RemoteModified, result.Path, event.Metadata{}))
}
