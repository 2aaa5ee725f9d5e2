// Package interact translates interactive protocol events into the
// coordinator's pending-request model and formats operator responses into
// resume prompts. It performs no process control.
package interact

import (
	"fmt"

	"github.com/example/taskforce/internal/protocol"
)

// Request is one of the three pending interactive request shapes. At most
// one request is outstanding per task at any time.
type Request interface {
	// Task returns the ID of the task the request belongs to.
	Task() string
	// Agent returns the ID of the commander agent the request is
	// attributed to.
	Agent() string
}

// DangerousCommandAlert asks the operator to dismiss or cancel a command
// the agent flagged as dangerous. The underlying process is still alive,
// blocked on a control response.
type DangerousCommandAlert struct {
	TaskID    string
	AgentID   string
	RequestID string
	Tool      string
	Input     string
	Reason    string
}

func (r DangerousCommandAlert) Task() string  { return r.TaskID }
func (r DangerousCommandAlert) Agent() string { return r.AgentID }

// AskUserQuestionRequest carries one or more questions for the operator.
// The originating process has exited; answers resume the session.
type AskUserQuestionRequest struct {
	TaskID    string
	AgentID   string
	SessionID string
	Questions []protocol.Question
}

func (r AskUserQuestionRequest) Task() string  { return r.TaskID }
func (r AskUserQuestionRequest) Agent() string { return r.AgentID }

// PlanReviewRequest carries a plan awaiting operator approval. The
// originating process has exited; the verdict resumes the session.
type PlanReviewRequest struct {
	TaskID      string
	AgentID     string
	SessionID   string
	PlanContent string
}

func (r PlanReviewRequest) Task() string  { return r.TaskID }
func (r PlanReviewRequest) Agent() string { return r.AgentID }

// Classify builds the pending request for an interactive protocol event.
// Non-interactive event kinds return an error — routing them here is a
// programming mistake, not an operator condition.
func Classify(taskID, agentID string, ev protocol.Event) (Request, error) {
	switch ev.Kind {
	case protocol.KindPermissionRequest:
		return DangerousCommandAlert{
			TaskID:    taskID,
			AgentID:   agentID,
			RequestID: ev.RequestID,
			Tool:      ev.Tool,
			Input:     ev.Input,
			Reason:    ev.Reason,
		}, nil

	case protocol.KindQuestion:
		return AskUserQuestionRequest{
			TaskID:    taskID,
			AgentID:   agentID,
			SessionID: ev.SessionID,
			Questions: ev.Questions,
		}, nil

	case protocol.KindPlanReview:
		return PlanReviewRequest{
			TaskID:      taskID,
			AgentID:     agentID,
			SessionID:   ev.SessionID,
			PlanContent: ev.Plan,
		}, nil

	default:
		return nil, fmt.Errorf("event kind %q is not interactive", ev.Kind)
	}
}
