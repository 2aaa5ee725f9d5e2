package backend

import (
	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/protocol"
)

// Config defines how the agent CLI is invoked.
type Config struct {
	Command        string   // CLI binary name (default "claude")
	Args           []string // extra args appended to every invocation
	Model          string   // model override (e.g. "opus-4")
	PermissionMode string   // e.g. "default", "plan"
}

// StartOptions parameterize one process start.
type StartOptions struct {
	TaskID  string
	AgentID string
	Prompt  string
	WorkDir string

	// ResumeSessionID, when set, binds the new process to an existing
	// session instead of opening a fresh one.
	ResumeSessionID string
}

// Callbacks receive the typed events parsed from a process's output
// stream. All callbacks for one task fire in stream order from that
// task's reader goroutine; no callback fires after Cancel returns for
// the task. Nil callbacks are skipped.
type Callbacks struct {
	// OnStatusChange fires for ordinary lifecycle events: the agent
	// begins thinking (session init) or working (first output).
	OnStatusChange func(agentID string, status agent.Status)
	// OnProgress fires with a monotonic estimate derived from the
	// cumulative tool-call count.
	OnProgress func(taskID string, progress float64)
	// OnOutput fires for assistant text lines.
	OnOutput func(taskID string, line string)
	// OnCompleted fires on terminal success. No further events follow.
	OnCompleted func(taskID string, result string)
	// OnFailed fires on terminal failure, including nonzero process exit
	// without a prior result. No further events follow.
	OnFailed func(taskID string, errText string)
	// OnInteractive fires for the interactive checkpoints: permission
	// requests, operator questions, and plan reviews. The event's
	// SessionID carries the session the handle is bound to, targeting
	// the later resume.
	OnInteractive func(taskID, agentID string, ev protocol.Event)
}
