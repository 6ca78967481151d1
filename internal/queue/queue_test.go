package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncagent/syncagent/internal/event"
)

func TestPutTakeOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()

	q.Put(event.Event{Type: event.RemoteModified, Path: "remote.txt", Timestamp: time.Unix(1, 0)})
	q.Put(event.Event{Type: event.LocalModified, Path: "local.txt", Timestamp: time.Unix(2, 0)})
	q.Put(event.Event{Type: event.LocalDeleted, Path: "deleted.txt", Timestamp: time.Unix(3, 0)})

	ctx := context.Background()

	first, ok := q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, "deleted.txt", first.Path, "CRITICAL priority must be served first")

	second, ok := q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, "local.txt", second.Path, "HIGH priority before NORMAL")

	third, ok := q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, "remote.txt", third.Path)
}

func TestPutDedupesByPathKeepingNewerMtime(t *testing.T) {
	q := New()

	q.Put(event.Event{
		Type: event.LocalModified, Path: "a.txt", Timestamp: time.Unix(10, 0),
		Metadata: event.Metadata{Mtime: 100, MtimeKnown: true},
	})
	q.Put(event.Event{
		Type: event.LocalModified, Path: "a.txt", Timestamp: time.Unix(5, 0),
		Metadata: event.Metadata{Mtime: 50, MtimeKnown: true},
	})

	assert.Equal(t, 1, q.Size())

	got, ok := q.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, float64(100), got.Metadata.Mtime, "older mtime event must be discarded")
}

func TestPutDedupeFallsBackToTimestampWhenMtimeUnknown(t *testing.T) {
	q := New()

	q.Put(event.Event{Type: event.LocalModified, Path: "a.txt", Timestamp: time.Unix(1, 0)})
	q.Put(event.Event{Type: event.LocalModified, Path: "a.txt", Timestamp: time.Unix(2, 0)})
	q.Put(event.Event{Type: event.LocalModified, Path: "a.txt", Timestamp: time.Unix(0, 500)}) // stale, discarded

	got, ok := q.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, time.Unix(2, 0), got.Timestamp)
}

func TestRemove(t *testing.T) {
	q := New()
	q.Put(event.Event{Type: event.LocalCreated, Path: "a.txt"})

	assert.True(t, q.Remove("a.txt"))
	assert.False(t, q.Remove("a.txt"))
	assert.Equal(t, 0, q.Size())
}

func TestTakeBlocksUntilPut(t *testing.T) {
	q := New()

	resultCh := make(chan event.Event, 1)

	go func() {
		evt, ok := q.Take(context.Background())
		if ok {
			resultCh <- evt
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(event.Event{Type: event.LocalCreated, Path: "late.txt"})

	select {
	case evt := <-resultCh:
		assert.Equal(t, "late.txt", evt.Path)
	case <-time.After(time.Second):
		t.Fatal("Take did not unblock after Put")
	}
}

func TestTakeUnblocksOnContextCancel(t *testing.T) {
	q := New()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)

	go func() {
		_, ok := q.Take(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Take did not unblock after context cancel")
	}
}

func TestSnapshotAndSize(t *testing.T) {
	q := New()
	q.Put(event.Event{Type: event.LocalCreated, Path: "a.txt"})
	q.Put(event.Event{Type: event.LocalCreated, Path: "b.txt"})

	assert.Equal(t, 2, q.Size())
	assert.Len(t, q.Snapshot(), 2)
}
