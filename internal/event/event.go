// Package event defines the typed events that flow from the change
// detector through the event queue to the coordinator.
package event

import "time"

// Type enumerates every event kind the system produces.
type Type string

// Event kinds.
const (
	LocalCreated  Type = "LOCAL_CREATED"
	LocalModified Type = "LOCAL_MODIFIED"
	LocalDeleted  Type = "LOCAL_DELETED"

	RemoteCreated  Type = "REMOTE_CREATED"
	RemoteModified Type = "REMOTE_MODIFIED"
	RemoteDeleted  Type = "REMOTE_DELETED"

	TransferCompleted Type = "TRANSFER_COMPLETED"
	TransferFailed    Type = "TRANSFER_FAILED"
	TransferCancelled Type = "TRANSFER_CANCELLED"
)

// IsLocal reports whether t originates from the local filesystem side.
func (t Type) IsLocal() bool {
	return t == LocalCreated || t == LocalModified || t == LocalDeleted
}

// IsRemote reports whether t originates from the remote API side.
func (t Type) IsRemote() bool {
	return t == RemoteCreated || t == RemoteModified || t == RemoteDeleted
}

// IsTransfer reports whether t is an internal bookkeeping event emitted by
// the worker pool on a terminal transfer outcome.
func (t Type) IsTransfer() bool {
	return t == TransferCompleted || t == TransferFailed || t == TransferCancelled
}

// Priority is the queue-ordering priority of an event.
type Priority int

// Priority levels, lowest value served first.
const (
	PriorityCritical Priority = 10 // DELETE events
	PriorityHigh     Priority = 20 // local changes
	PriorityNormal   Priority = 30 // remote changes
	PriorityLow      Priority = 90 // internal TRANSFER_* events
)

// PriorityOf implements the declarative priority rule table keyed on event
// type.
func PriorityOf(t Type) Priority {
	switch {
	case t == LocalDeleted || t == RemoteDeleted:
		return PriorityCritical
	case t.IsLocal():
		return PriorityHigh
	case t.IsRemote():
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Metadata carries the mtime/size observed by the emitter at the moment it
// read the file — not the emission time.
type Metadata struct {
	Mtime       float64
	MtimeKnown  bool
	Size        int64
	ParentVersion *int64 // remote version a LOCAL_* change descends from; the detector leaves it nil and the coordinator then takes it from the path's SyncedFileRecord
}

// Event is one unit of work flowing from detector to coordinator.
type Event struct {
	Type      Type
	Path      string
	Timestamp time.Time
	Metadata  Metadata
}

// NewEvent constructs an Event stamped with the current time.
func NewEvent(t Type, path string, meta Metadata) Event {
	return Event{Type: t, Path: path, Timestamp: now(), Metadata: meta}
}

// now is a seam for deterministic tests; production always uses time.Now.
var now = time.Now
