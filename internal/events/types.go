package events

import (
	"time"

	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/interact"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicAgent   = "agent"
	TopicTask    = "task"
	TopicTeam    = "team"
	TopicRequest = "request"
)

// Event type constants
const (
	EventTypeAgentStatus    = "agent.status"
	EventTypeTaskUpdated    = "task.updated"
	EventTypeTaskOutput     = "task.output"
	EventTypeRequestRaised  = "request.raised"
	EventTypeRequestCleared = "request.cleared"
	EventTypeTeamSpawned    = "team.spawned"
	EventTypeTeamDisbanding = "team.disbanding"
	EventTypeTeamDisbanded  = "team.disbanded"
)

// AgentStatusEvent is published whenever an agent's status changes,
// including statuses derived through commander propagation.
type AgentStatusEvent struct {
	AgentID   string
	Status    agent.Status
	Timestamp time.Time
}

func (e AgentStatusEvent) EventType() string { return EventTypeAgentStatus }
func (e AgentStatusEvent) TaskID() string    { return "" }

// TaskUpdatedEvent is published when a task's status, progress, or
// terminal texts change.
type TaskUpdatedEvent struct {
	ID        string
	AgentID   string
	Status    string
	Progress  float64
	Result    string
	Error     string
	Timestamp time.Time
}

func (e TaskUpdatedEvent) EventType() string { return EventTypeTaskUpdated }
func (e TaskUpdatedEvent) TaskID() string    { return e.ID }

// TaskOutputEvent is published for assistant text lines, so the
// presentation layer can show a transcript.
type TaskOutputEvent struct {
	ID        string
	Line      string
	Timestamp time.Time
}

func (e TaskOutputEvent) EventType() string { return EventTypeTaskOutput }
func (e TaskOutputEvent) TaskID() string    { return e.ID }

// RequestRaisedEvent is published when an interactive request becomes
// outstanding for a task.
type RequestRaisedEvent struct {
	ID        string
	Request   interact.Request
	Timestamp time.Time
}

func (e RequestRaisedEvent) EventType() string { return EventTypeRequestRaised }
func (e RequestRaisedEvent) TaskID() string    { return e.ID }

// RequestClearedEvent is published when the operator resolves an
// outstanding request. Resolution is one of "dismissed", "cancelled",
// "answered", "approved", "rejected".
type RequestClearedEvent struct {
	ID         string
	Resolution string
	Timestamp  time.Time
}

func (e RequestClearedEvent) EventType() string { return EventTypeRequestCleared }
func (e RequestClearedEvent) TaskID() string    { return e.ID }

// TeamSpawnedEvent is published when a new commander and its sub-agent
// roster are created.
type TeamSpawnedEvent struct {
	CommanderID string
	MemberIDs   []string
	Timestamp   time.Time
}

func (e TeamSpawnedEvent) EventType() string { return EventTypeTeamSpawned }
func (e TeamSpawnedEvent) TaskID() string    { return "" }

// TeamDisbandingEvent announces the start of a team teardown so the
// presentation layer can play its transition before the records go away.
type TeamDisbandingEvent struct {
	CommanderID string
	Timestamp   time.Time
}

func (e TeamDisbandingEvent) EventType() string { return EventTypeTeamDisbanding }
func (e TeamDisbandingEvent) TaskID() string    { return "" }

// TeamDisbandedEvent is published after the team's agents and completed
// tasks were removed from the model.
type TeamDisbandedEvent struct {
	CommanderID string
	MemberIDs   []string
	Timestamp   time.Time
}

func (e TeamDisbandedEvent) EventType() string { return EventTypeTeamDisbanded }
func (e TeamDisbandedEvent) TaskID() string    { return "" }
