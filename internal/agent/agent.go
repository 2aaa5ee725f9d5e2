// Package agent holds the flat agent arena and the status model.
// Agents are stored as flat records keyed by ID with a ParentID
// back-reference; descendant sets are computed by filtering, never
// through owned child pointers.
package agent

// Status represents the current state of an agent.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusThinking             Status = "thinking"
	StatusWorking              Status = "working"
	StatusCompleted            Status = "completed"
	StatusError                Status = "error"
	StatusRequestingPermission Status = "requestingPermission"
	StatusWaitingForAnswer     Status = "waitingForAnswer"
	StatusReviewingPlan        Status = "reviewingPlan"
	StatusSuspended            Status = "suspended"
)

// AllStatuses lists every status value, used for exhaustive checks.
var AllStatuses = []Status{
	StatusIdle,
	StatusThinking,
	StatusWorking,
	StatusCompleted,
	StatusError,
	StatusRequestingPermission,
	StatusWaitingForAnswer,
	StatusReviewingPlan,
	StatusSuspended,
}

// Agent represents a single agent record in the arena.
type Agent struct {
	ID       string
	ParentID string // empty for a commander
	Role     string // e.g. "commander", "coder", "reviewer"
	Status   Status
}

// IsCommander reports whether the agent is a top-level (commander) agent.
func (a *Agent) IsCommander() bool {
	return a.ParentID == ""
}

// descendantStatus maps a commander status to the status every descendant
// of that commander must hold. A descendant's status is never set
// independently outside of disband teardown.
var descendantStatus = map[Status]Status{
	StatusIdle:                 StatusIdle,
	StatusThinking:             StatusThinking,
	StatusWorking:              StatusWorking,
	StatusCompleted:            StatusCompleted,
	StatusError:                StatusIdle,
	StatusRequestingPermission: StatusIdle,
	StatusWaitingForAnswer:     StatusIdle,
	StatusReviewingPlan:        StatusThinking,
	StatusSuspended:            StatusSuspended,
}

// DescendantStatus returns the status a descendant must hold when its
// commander holds the given status.
func DescendantStatus(commander Status) Status {
	return descendantStatus[commander]
}
