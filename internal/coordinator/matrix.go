package coordinator

import (
	"github.com/syncagent/syncagent/internal/event"
	"github.com/syncagent/syncagent/internal/transfer"
)

// Action is the decision matrix's verdict for an incoming event evaluated
// against the active Transfer (if any) on the same path.
type Action string

// Actions the decision matrix can produce for an incoming event.
const (
	ActionCancelAndRequeue   Action = "CANCEL_AND_REQUEUE"
	ActionIgnore             Action = "IGNORE"
	ActionMarkConflict       Action = "MARK_CONFLICT"
	ActionCreateConflictCopy Action = "CREATE_CONFLICT_COPY"
	ActionDispatch           Action = "DISPATCH"
)

// eventClass buckets an event.Type into the row keys used by the decision
// matrix table below. A single event can match more than one class — e.g.
// REMOTE_MODIFIED matches both the "REMOTE_MODIFIED"-specific row and the
// general "REMOTE" row — so classesFor returns candidates most-specific
// first.
func classesFor(t event.Type) []string {
	switch {
	case t.IsLocal():
		return []string{"LOCAL"}
	case t == event.RemoteModified:
		return []string{"REMOTE_MODIFIED", "REMOTE"}
	case t == event.RemoteDeleted:
		return []string{"REMOTE_DELETED", "REMOTE"}
	case t.IsRemote():
		return []string{"REMOTE"}
	default:
		return nil
	}
}

type matrixRow struct {
	class  string
	active transfer.Kind
	action Action
}

// decisionMatrix encodes the event/active-transfer decision table as a data literal.
// Adding a rule means adding a row here — the dispatch loop in coordinator.go
// never branches on event or transfer kind directly.
var decisionMatrix = []matrixRow{
	{class: "LOCAL", active: transfer.Download, action: ActionCancelAndRequeue},
	{class: "LOCAL", active: transfer.Upload, action: ActionIgnore},
	{class: "REMOTE_MODIFIED", active: transfer.Upload, action: ActionMarkConflict},
	{class: "REMOTE_DELETED", active: transfer.Upload, action: ActionCreateConflictCopy},
	{class: "REMOTE", active: transfer.Download, action: ActionIgnore},
}

// decide evaluates the decision matrix for an incoming event against the
// kind of the currently active transfer on that path, if any. Unknown
// combinations default to IGNORE when a transfer is active, and to DISPATCH
// when the path is idle.
func decide(newType event.Type, activeKind transfer.Kind, hasActive bool) Action {
	if !hasActive {
		return ActionDispatch
	}

	for _, class := range classesFor(newType) {
		for _, row := range decisionMatrix {
			if row.class == class && row.active == activeKind {
				return row.action
			}
		}
	}

	return ActionIgnore
}
