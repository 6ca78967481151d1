// Package transfer defines the shared vocabulary between the coordinator and
// the worker pool — kept as its own leaf package (mirroring internal/event)
// so neither side has to import the other.
package transfer

import (
	"sync/atomic"

	"github.com/syncagent/syncagent/internal/event"
)

// Kind identifies what a worker must do with a Task.
type Kind string

// Worker kinds.
const (
	Upload   Kind = "UPLOAD"
	Download Kind = "DOWNLOAD"
	Delete   Kind = "DELETE"
)

// Task is handed from the coordinator to a worker pool slot.
type Task struct {
	Path   string
	Kind   Kind
	Event  event.Event
	Cancel *atomic.Bool

	// ParentVersion carries the server version the event's metadata was
	// derived against, for the pre-transfer conflict check.
	ParentVersion *int64

	// ConflictCopy is always false: the coordinator never sets it (its
	// CREATE_CONFLICT_COPY decision leaves the in-flight upload running
	// unchanged) and no worker reads it.
	ConflictCopy bool
}

// Outcome is the terminal state a worker reports for a Task.
type Outcome string

// Terminal outcomes.
const (
	Completed Outcome = "COMPLETED"
	Cancelled Outcome = "CANCELLED"
	Failed    Outcome = "FAILED"
	Conflict  Outcome = "CONFLICT"
)

// FailureKind distinguishes retryable from fatal failures.
type FailureKind string

// Failure kinds.
const (
	FailureRetryable FailureKind = "RETRYABLE"
	FailureFatal     FailureKind = "FATAL"
)

// Result reports a Task's terminal outcome back to the coordinator.
type Result struct {
	Path         string
	Kind         Kind
	Outcome      Outcome
	FailureKind  FailureKind
	Err          error
	ConflictPath string
}
