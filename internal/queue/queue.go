// Package queue implements the thread-safe, priority-ordered, per-path
// deduplicating EventQueue. It carries no business logic
// beyond ordering and dedup — decision-making lives in internal/coordinator.
package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/syncagent/syncagent/internal/event"
)

// item is one heap entry. seq breaks ties within the same priority so the
// queue is FIFO among events of equal priority.
type item struct {
	evt      event.Event
	priority event.Priority
	seq      uint64
	index    int // maintained by container/heap
}

type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}

	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]

	return it
}

// Queue is a priority queue of pending events, ordered by Priority then age.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	heap     priorityHeap
	byPath   map[string]*item
	nextSeq  uint64
	closed   bool
}

// New creates an empty Queue.
func New() *Queue {
	q := &Queue{byPath: make(map[string]*item)}
	q.cond = sync.NewCond(&q.mu)

	return q
}

// Put inserts evt, applying the MtimeAwareComparator against any existing
// event for the same path. Always succeeds; a non-newer
// incoming event is silently discarded rather than returning an error —
// this is the rule that makes the watcher+scanner race safe.
func (q *Queue) Put(evt event.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	existing, ok := q.byPath[evt.Path]
	if ok && !isNewer(evt, existing.evt) {
		return
	}

	priority := event.PriorityOf(evt.Type)

	if ok {
		existing.evt = evt
		existing.priority = priority
		existing.seq = q.nextSeq
		q.nextSeq++
		heap.Fix(&q.heap, existing.index)
		q.cond.Signal()

		return
	}

	it := &item{evt: evt, priority: priority, seq: q.nextSeq}
	q.nextSeq++
	q.byPath[evt.Path] = it
	heap.Push(&q.heap, it)
	q.cond.Signal()
}

// isNewer implements the MtimeAwareComparator:
//  1. If both events carry mtime in metadata: newer mtime wins; ties go to
//     the newer event timestamp.
//  2. Else: newer timestamp wins.
func isNewer(incoming, existing event.Event) bool {
	if incoming.Metadata.MtimeKnown && existing.Metadata.MtimeKnown {
		if incoming.Metadata.Mtime != existing.Metadata.Mtime {
			return incoming.Metadata.Mtime > existing.Metadata.Mtime
		}

		return incoming.Timestamp.After(existing.Timestamp)
	}

	return incoming.Timestamp.After(existing.Timestamp)
}

// Take blocks until an event is available, ctx is cancelled, or the queue is
// closed, then returns the highest-priority (lowest priority value), oldest
// event. The second return is false if ctx was cancelled or the queue
// closed before an event arrived.
func (q *Queue) Take(ctx context.Context) (event.Event, bool) {
	done := make(chan struct{})

	// Wake the blocked cond.Wait when ctx is cancelled — sync.Cond has no
	// native context support, so a watcher goroutine bridges the two.
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}

	if len(q.heap) == 0 {
		return event.Event{}, false
	}

	it := heap.Pop(&q.heap).(*item)
	delete(q.byPath, it.evt.Path)

	return it.evt, true
}

// Remove drops the pending event for path, if any (used by the coordinator
// when cancelling a pending operation). Reports whether an event was
// removed.
func (q *Queue) Remove(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byPath[path]
	if !ok {
		return false
	}

	heap.Remove(&q.heap, it.index)
	delete(q.byPath, path)

	return true
}

// Size returns the number of pending events.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.heap)
}

// Snapshot returns a stable copy of all pending events, for observability.
// Order is not significant.
func (q *Queue) Snapshot() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]event.Event, 0, len(q.heap))
	for _, it := range q.heap {
		out = append(out, it.evt)
	}

	return out
}

// Close unblocks any goroutines waiting in Take. Put after Close is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
