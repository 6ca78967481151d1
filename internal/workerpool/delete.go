package workerpool

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/syncagent/syncagent/internal/transfer"
)

// runDelete implements DeleteWorker: remove the local file
// (idempotent) or call the remote delete (soft delete server-side), then
// erase the SyncedFileRecord. Which side to act on is determined by the
// originating event: a LOCAL_DELETED event means the file is already gone
// locally and only the remote side needs deleting; a REMOTE_DELETED event
// means only the local copy needs removing.
func (p *Pool) runDelete(ctx context.Context, task transfer.Task) transfer.Result {
	fail := func(err error) transfer.Result {
		return transfer.Result{Path: task.Path, Kind: transfer.Delete, Outcome: transfer.Failed, FailureKind: transfer.FailureRetryable, Err: err}
	}

	if task.Event.Type.IsLocal() {
		rec, err := p.store.GetSyncedFileRecord(ctx, task.Path)
		if err != nil {
			return fail(fmt.Errorf("delete: looking up synced record for %s: %w", task.Path, err))
		}

		// A LOCAL_DELETED event for a path that was never synced (created
		// and removed before any upload completed) has nothing to tell the
		// server about.
		if rec == nil {
			return transfer.Result{Path: task.Path, Kind: transfer.Delete, Outcome: transfer.Completed}
		}

		if err := p.meta.DeleteFile(ctx, task.Path); err != nil {
			return fail(fmt.Errorf("delete: removing %s on remote: %w", task.Path, err))
		}
	} else {
		if err := os.Remove(p.fullPath(task.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fail(fmt.Errorf("delete: removing %s locally: %w", task.Path, err))
		}
	}

	if err := p.store.DeleteSyncedFileRecord(ctx, task.Path); err != nil {
		return fail(fmt.Errorf("delete: clearing synced record for %s: %w", task.Path, err))
	}

	if err := p.store.DeleteUploadProgress(ctx, task.Path); err != nil {
		return fail(fmt.Errorf("delete: clearing upload progress for %s: %w", task.Path, err))
	}

	return transfer.Result{Path: task.Path, Kind: transfer.Delete, Outcome: transfer.Completed}
}
