package coordinator

import (
	"context"
	"log/slog"

	"github.com/syncagent/syncagent/internal/detector"
)

// batchTracker counts down the number of events still outstanding from one
// polled remote changes page before its cursor may be persisted.
type batchTracker struct {
	cursor    string
	remaining int
}

// TrackRemoteBatch registers a batch returned by detector.Scanner.PollRemote.
// An empty batch has no outstanding events, so its cursor is persisted
// immediately; otherwise the cursor is held until every event it produced
// reaches a terminal outcome via ReportResult.
func (c *Coordinator) TrackRemoteBatch(ctx context.Context, batch *detector.RemoteBatch) error {
	if batch.EventCount == 0 {
		return c.store.PutChangeCursor(ctx, batch.Cursor)
	}

	c.mu.Lock()
	c.batches = append(c.batches, &batchTracker{cursor: batch.Cursor, remaining: batch.EventCount})
	c.mu.Unlock()

	return nil
}

// advanceCursorIfBatchComplete decrements the oldest tracked batch and, once
// it reaches zero, persists its cursor and moves on to the next. Batches are
// completed strictly in FIFO order since polls are sequential and
// non-overlapping.
func (c *Coordinator) advanceCursorIfBatchComplete(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.batches) == 0 {
		return
	}

	front := c.batches[0]
	front.remaining--

	if front.remaining > 0 {
		return
	}

	if err := c.store.PutChangeCursor(ctx, front.cursor); err != nil {
		c.logger.Error("coordinator: failed to persist change cursor", slog.String("error", err.Error()))
		return
	}

	c.batches = c.batches[1:]
}
