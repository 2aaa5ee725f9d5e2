// Package protocol defines the line-oriented event protocol emitted on
// stdout by the agent CLI when invoked with --output-format stream-json.
// Each line is one self-contained JSON record; malformed lines are
// reported as errors and skipped by the caller, never fatal.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates parsed events.
type Kind string

const (
	// KindInit is the session bootstrap record; carries the session ID.
	KindInit Kind = "init"
	// KindText is ordinary assistant text output.
	KindText Kind = "text"
	// KindToolUse is a non-interactive tool invocation; drives progress.
	KindToolUse Kind = "tool_use"
	// KindCompleted is the terminal success record.
	KindCompleted Kind = "completed"
	// KindFailed is the terminal failure record.
	KindFailed Kind = "failed"
	// KindPermissionRequest is an in-flight permission checkpoint for a
	// dangerous command. The process blocks on stdin for a control
	// response rather than exiting.
	KindPermissionRequest Kind = "permission_request"
	// KindQuestion is a request for operator answers; the process exits
	// after emitting it and is resumed with a synthesized prompt.
	KindQuestion Kind = "question"
	// KindPlanReview is a request for plan approval; exits like KindQuestion.
	KindPlanReview Kind = "plan_review"
)

// Interactive tool names recognized inside assistant messages.
const (
	toolAskUserQuestion = "AskUserQuestion"
	toolExitPlanMode    = "ExitPlanMode"
)

// Question is one question inside a KindQuestion event.
type Question struct {
	Header      string   `json:"header"`
	Question    string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
}

// Event is a parsed protocol record.
type Event struct {
	Kind      Kind
	SessionID string

	// KindText
	Text string

	// KindToolUse / KindPermissionRequest
	Tool  string
	Input string // compact JSON of the tool input

	// KindPermissionRequest
	RequestID string
	Reason    string

	// KindCompleted / KindFailed
	Result    string
	ErrorText string

	// KindQuestion
	Questions []Question

	// KindPlanReview
	Plan string
}

// line is the wire shape shared by all record types.
type line struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *message        `json:"message,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Request   *controlRequest `json:"request,omitempty"`
}

type message struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type controlRequest struct {
	Subtype  string          `json:"subtype"`
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

type askUserQuestionInput struct {
	Questions []Question `json:"questions"`
}

type exitPlanModeInput struct {
	Plan string `json:"plan"`
}

// Parse decodes one stdout line into zero or more events. An assistant
// record may carry several content blocks, hence the slice. Unrecognized
// record types yield no events and no error; undecodable JSON returns an
// error so the caller can log and skip the line.
func Parse(data []byte) ([]Event, error) {
	var l line
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("malformed event line: %w", err)
	}

	switch l.Type {
	case "system":
		if l.Subtype == "init" {
			return []Event{{Kind: KindInit, SessionID: l.SessionID}}, nil
		}
		return nil, nil

	case "assistant":
		return parseAssistant(&l)

	case "result":
		if l.IsError {
			errText := l.Result
			if errText == "" {
				errText = l.Subtype
			}
			return []Event{{Kind: KindFailed, SessionID: l.SessionID, ErrorText: errText}}, nil
		}
		return []Event{{Kind: KindCompleted, SessionID: l.SessionID, Result: l.Result}}, nil

	case "control_request":
		return parseControlRequest(&l)

	default:
		// Unknown record types (e.g. "user" tool results) carry nothing
		// the orchestration layer consumes.
		return nil, nil
	}
}

func parseAssistant(l *line) ([]Event, error) {
	if l.Message == nil {
		return nil, nil
	}

	var events []Event
	for _, block := range l.Message.Content {
		switch block.Type {
		case "text":
			events = append(events, Event{Kind: KindText, SessionID: l.SessionID, Text: block.Text})

		case "tool_use":
			ev, err := parseToolUse(l.SessionID, block)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func parseToolUse(sessionID string, block contentBlock) (Event, error) {
	switch block.Name {
	case toolAskUserQuestion:
		var input askUserQuestionInput
		if err := json.Unmarshal(block.Input, &input); err != nil {
			return Event{}, fmt.Errorf("malformed %s input: %w", toolAskUserQuestion, err)
		}
		return Event{Kind: KindQuestion, SessionID: sessionID, Questions: input.Questions}, nil

	case toolExitPlanMode:
		var input exitPlanModeInput
		if err := json.Unmarshal(block.Input, &input); err != nil {
			return Event{}, fmt.Errorf("malformed %s input: %w", toolExitPlanMode, err)
		}
		return Event{Kind: KindPlanReview, SessionID: sessionID, Plan: input.Plan}, nil

	default:
		return Event{
			Kind:      KindToolUse,
			SessionID: sessionID,
			Tool:      block.Name,
			Input:     compactInput(block.Input),
		}, nil
	}
}

func parseControlRequest(l *line) ([]Event, error) {
	if l.Request == nil || l.Request.Subtype != "can_use_tool" {
		return nil, nil
	}
	return []Event{{
		Kind:      KindPermissionRequest,
		SessionID: l.SessionID,
		RequestID: l.RequestID,
		Tool:      l.Request.ToolName,
		Input:     compactInput(l.Request.Input),
		Reason:    l.Request.Reason,
	}}, nil
}

func compactInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}

// ControlResponse builds the stdin record that answers an in-flight
// permission checkpoint. behavior is "allow" or "deny".
func ControlResponse(requestID, behavior string) ([]byte, error) {
	resp := map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"request_id": requestID,
			"subtype":    "success",
			"response":   map[string]any{"behavior": behavior},
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal control response: %w", err)
	}
	return append(data, '\n'), nil
}
