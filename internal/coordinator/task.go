package coordinator

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "inProgress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is one unit of work assigned to a commander agent.
type Task struct {
	ID      string
	AgentID string // the commander the task belongs to
	Prompt  string

	Status   TaskStatus
	Progress float64
	Result   string
	Error    string

	// SessionID is the agent session the task is bound to, used for
	// resume-based interaction.
	SessionID string

	// IsRealExecution distinguishes live CLI-backed tasks from simulated
	// ones (e.g. replayed transcripts in tests or demos).
	IsRealExecution bool

	// TeamAgentIDs is the commander's team membership captured at
	// submission time. It never changes afterward, even if agents are
	// added to or removed from the roster later.
	TeamAgentIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the task has reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// clone returns a copy safe to hand outside the coordinator's lock.
func (t *Task) clone() *Task {
	c := *t
	c.TeamAgentIDs = append([]string(nil), t.TeamAgentIDs...)
	return &c
}
