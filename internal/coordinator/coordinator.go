// Package coordinator owns the task and team model. It submits tasks to
// the process supervisor, folds supervisor callbacks into agent and task
// state, mediates interactive requests, and drives team disband.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/backend"
	"github.com/example/taskforce/internal/disband"
	"github.com/example/taskforce/internal/events"
	"github.com/example/taskforce/internal/interact"
	"github.com/example/taskforce/internal/persistence"
	"github.com/example/taskforce/internal/protocol"
)

// ProcessStarter is the slice of the process supervisor the coordinator
// drives. Start returns the session ID the new process is bound to.
type ProcessStarter interface {
	Start(opts backend.StartOptions) (sessionID string, err error)
	Cancel(taskID string)
	RespondPermission(taskID, requestID, behavior string) error
	HasLive(taskID string) bool
}

// Options configure a Coordinator. Roster and Bus are required; Store may
// be nil to disable session persistence.
type Options struct {
	Roster  *agent.Roster
	Bus     *events.Bus
	Disband *disband.Scheduler
	Store   persistence.Store
	WorkDir string
}

// Coordinator is the single owner of task records and pending interactive
// requests. All mutations happen under one mutex; process-control calls
// are made only after the mutex is released, because callback delivery
// from the supervisor blocks on this mutex.
type Coordinator struct {
	roster  *agent.Roster
	bus     *events.Bus
	disband *disband.Scheduler
	store   persistence.Store
	workDir string

	starterMu sync.RWMutex
	starter   ProcessStarter

	mu      sync.Mutex
	tasks   map[string]*Task
	pending map[string]interact.Request // taskID -> outstanding request
}

// New creates a coordinator. SetStarter must be called before tasks are
// submitted; the split exists because the supervisor needs the
// coordinator's callbacks at construction time.
func New(opts Options) *Coordinator {
	return &Coordinator{
		roster:  opts.Roster,
		bus:     opts.Bus,
		disband: opts.Disband,
		store:   opts.Store,
		workDir: opts.WorkDir,
		tasks:   make(map[string]*Task),
		pending: make(map[string]interact.Request),
	}
}

// SetStarter binds the process starter used for all subsequent starts.
func (c *Coordinator) SetStarter(s ProcessStarter) {
	c.starterMu.Lock()
	defer c.starterMu.Unlock()
	c.starter = s
}

func (c *Coordinator) getStarter() ProcessStarter {
	c.starterMu.RLock()
	defer c.starterMu.RUnlock()
	return c.starter
}

// Callbacks returns the supervisor callback set that feeds this
// coordinator. Pass it to backend.NewSupervisor.
func (c *Coordinator) Callbacks() backend.Callbacks {
	return backend.Callbacks{
		OnStatusChange: c.onStatusChange,
		OnProgress:     c.onProgress,
		OnOutput:       c.onOutput,
		OnCompleted:    c.onCompleted,
		OnFailed:       c.onFailed,
		OnInteractive:  c.onInteractive,
	}
}

// SpawnTeam creates a commander and one sub-agent per role, all idle, and
// announces the new team. Returns the commander's ID.
func (c *Coordinator) SpawnTeam(roles []string) (string, error) {
	commander := &agent.Agent{
		ID:     uuid.NewString(),
		Role:   "commander",
		Status: agent.StatusIdle,
	}
	if err := c.roster.Add(commander); err != nil {
		return "", fmt.Errorf("adding commander: %w", err)
	}

	memberIDs := []string{commander.ID}
	for _, role := range roles {
		sub := &agent.Agent{
			ID:       uuid.NewString(),
			ParentID: commander.ID,
			Role:     role,
			Status:   agent.StatusIdle,
		}
		if err := c.roster.Add(sub); err != nil {
			return "", fmt.Errorf("adding %s agent: %w", role, err)
		}
		memberIDs = append(memberIDs, sub.ID)
	}

	c.bus.Publish(events.TopicTeam, events.TeamSpawnedEvent{
		CommanderID: commander.ID,
		MemberIDs:   memberIDs,
		Timestamp:   time.Now(),
	})
	return commander.ID, nil
}

// SubmitTask creates a task for an existing commander and starts its
// process. Submitting new work cancels any pending disband for the
// commander's team.
func (c *Coordinator) SubmitTask(ctx context.Context, commanderID, prompt string) (string, error) {
	cmdr, ok := c.roster.Get(commanderID)
	if !ok {
		return "", fmt.Errorf("unknown commander %q", commanderID)
	}
	if !cmdr.IsCommander() {
		return "", fmt.Errorf("agent %q is not a commander", commanderID)
	}

	starter := c.getStarter()
	if starter == nil {
		return "", fmt.Errorf("no process starter configured")
	}

	task := &Task{
		ID:              uuid.NewString(),
		AgentID:         commanderID,
		Prompt:          prompt,
		Status:          TaskPending,
		IsRealExecution: true,
		TeamAgentIDs:    c.roster.Team(commanderID),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	c.mu.Lock()
	for _, t := range c.tasks {
		if t.AgentID == commanderID && !t.IsTerminal() {
			c.mu.Unlock()
			return "", fmt.Errorf("commander %q already has an active task", commanderID)
		}
	}
	c.tasks[task.ID] = task
	c.mu.Unlock()

	if c.disband != nil {
		c.disband.Cancel(commanderID)
	}
	c.setTeamStatus(commanderID, agent.StatusWorking)

	sessionID, err := starter.Start(backend.StartOptions{
		TaskID:  task.ID,
		AgentID: commanderID,
		Prompt:  prompt,
		WorkDir: c.workDir,
	})
	if err != nil {
		c.failTask(task.ID, fmt.Sprintf("starting agent process: %v", err))
		return task.ID, err
	}

	c.mu.Lock()
	task.Status = TaskInProgress
	task.SessionID = sessionID
	task.UpdatedAt = time.Now()
	c.mu.Unlock()

	c.saveSession(ctx, task.ID, commanderID, sessionID)
	c.publishTask(task.ID)
	return task.ID, nil
}

// RecoverSessions rebuilds resumable tasks from the sessions a previous
// run persisted. Each record becomes an idle commander with a pending
// task bound to the saved session; ResumeTask picks the work back up.
// Returns the number of tasks recovered.
func (c *Coordinator) RecoverSessions(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	records, err := c.store.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing saved sessions: %w", err)
	}

	recovered := 0
	for _, rec := range records {
		c.mu.Lock()
		_, exists := c.tasks[rec.TaskID]
		c.mu.Unlock()
		if exists {
			continue
		}

		if _, ok := c.roster.Get(rec.AgentID); !ok {
			cmdr := &agent.Agent{
				ID:     rec.AgentID,
				Role:   "commander",
				Status: agent.StatusIdle,
			}
			if err := c.roster.Add(cmdr); err != nil {
				log.Printf("WARNING: recovering commander %q: %v", rec.AgentID, err)
				continue
			}
			c.bus.Publish(events.TopicTeam, events.TeamSpawnedEvent{
				CommanderID: rec.AgentID,
				MemberIDs:   []string{rec.AgentID},
				Timestamp:   time.Now(),
			})
		}

		task := &Task{
			ID:              rec.TaskID,
			AgentID:         rec.AgentID,
			Status:          TaskPending,
			SessionID:       rec.SessionID,
			IsRealExecution: true,
			TeamAgentIDs:    c.roster.Team(rec.AgentID),
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}
		c.mu.Lock()
		c.tasks[task.ID] = task
		c.mu.Unlock()
		c.publishTask(task.ID)
		recovered++
	}
	return recovered, nil
}

// ResumeTask restarts a stopped task against its saved session with a
// neutral continuation prompt. The store is authoritative for the resume
// target, since the in-memory copy can trail it after a recovery.
func (c *Coordinator) ResumeTask(ctx context.Context, taskID string) error {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown task %q", taskID)
	}
	if task.IsTerminal() {
		c.mu.Unlock()
		return fmt.Errorf("task %q is already finished", taskID)
	}
	if c.pending[taskID] != nil {
		c.mu.Unlock()
		return fmt.Errorf("task %q has an outstanding request; resolve it instead", taskID)
	}
	agentID := task.AgentID
	sessionID := task.SessionID
	c.mu.Unlock()

	if starter := c.getStarter(); starter != nil && starter.HasLive(taskID) {
		return fmt.Errorf("task %q already has a live process", taskID)
	}

	if c.store != nil {
		if _, saved, err := c.store.GetSession(ctx, taskID); err == nil {
			sessionID = saved
		} else if !errors.Is(err, persistence.ErrNoSession) {
			log.Printf("WARNING: reading saved session for task %q: %v", taskID, err)
		}
	}

	if err := c.resume(ctx, taskID, agentID, sessionID, interact.ContinuePrompt); err != nil {
		return err
	}

	c.mu.Lock()
	if t, ok := c.tasks[taskID]; ok {
		t.Status = TaskInProgress
		t.UpdatedAt = time.Now()
	}
	c.mu.Unlock()
	c.publishTask(taskID)
	return nil
}

// SubmitTaskWithNewTeam spawns a fresh team and submits the prompt to its
// commander.
func (c *Coordinator) SubmitTaskWithNewTeam(ctx context.Context, prompt string, roles []string) (taskID, commanderID string, err error) {
	commanderID, err = c.SpawnTeam(roles)
	if err != nil {
		return "", "", err
	}
	taskID, err = c.SubmitTask(ctx, commanderID, prompt)
	return taskID, commanderID, err
}

// CancelTask terminates the task's process and marks it failed. The team
// returns to idle rather than error: the operator chose to stop, nothing
// went wrong. After it returns, no further state changes arrive for the
// task.
func (c *Coordinator) CancelTask(taskID string) error {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown task %q", taskID)
	}
	if task.IsTerminal() {
		c.mu.Unlock()
		return nil
	}
	hadPending := c.pending[taskID] != nil
	delete(c.pending, taskID)
	c.mu.Unlock()

	if starter := c.getStarter(); starter != nil {
		starter.Cancel(taskID)
	}

	if hadPending {
		c.bus.Publish(events.TopicRequest, events.RequestClearedEvent{
			ID: taskID, Resolution: "cancelled", Timestamp: time.Now(),
		})
	}
	c.cancelTask(taskID, "cancelled by operator")
	return nil
}

// Task returns a snapshot of the task, or false if it does not exist.
func (c *Coordinator) Task(taskID string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[taskID]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// Tasks returns snapshots of all tasks.
func (c *Coordinator) Tasks() []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t.clone())
	}
	return out
}

// PendingRequest returns the task's outstanding interactive request, if
// any.
func (c *Coordinator) PendingRequest(taskID string) (interact.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[taskID]
	return req, ok
}

// --- supervisor callbacks -------------------------------------------------

func (c *Coordinator) onStatusChange(agentID string, status agent.Status) {
	c.setTeamStatus(agentID, status)
}

func (c *Coordinator) onProgress(taskID string, progress float64) {
	c.mu.Lock()
	if task, ok := c.tasks[taskID]; ok {
		task.Progress = progress
		task.UpdatedAt = time.Now()
	}
	c.mu.Unlock()
	c.publishTask(taskID)
}

func (c *Coordinator) onOutput(taskID string, line string) {
	c.bus.Publish(events.TopicTask, events.TaskOutputEvent{
		ID: taskID, Line: line, Timestamp: time.Now(),
	})
}

func (c *Coordinator) onCompleted(taskID string, result string) {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	var commanderID string
	if ok {
		task.Status = TaskCompleted
		task.Progress = 1.0
		task.Result = result
		task.UpdatedAt = time.Now()
		commanderID = task.AgentID
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	c.setTeamStatus(commanderID, agent.StatusCompleted)
	c.publishTask(taskID)
	c.maybeScheduleDisband(commanderID)
}

func (c *Coordinator) onFailed(taskID string, errText string) {
	c.failTask(taskID, errText)
}

// onInteractive folds an interactive checkpoint into a pending request
// and parks the team in the matching waiting status.
func (c *Coordinator) onInteractive(taskID, agentID string, ev protocol.Event) {
	req, err := interact.Classify(taskID, agentID, ev)
	if err != nil {
		log.Printf("WARNING: task %q: %v", taskID, err)
		return
	}

	var status agent.Status
	switch req.(type) {
	case interact.DangerousCommandAlert:
		status = agent.StatusRequestingPermission
	case interact.AskUserQuestionRequest:
		status = agent.StatusWaitingForAnswer
	default:
		status = agent.StatusReviewingPlan
	}
	c.raiseRequest(taskID, agentID, ev.SessionID, req, status)
}

func (c *Coordinator) raiseRequest(taskID, agentID, sessionID string, req interact.Request, status agent.Status) {
	c.mu.Lock()
	if existing := c.pending[taskID]; existing != nil {
		c.mu.Unlock()
		log.Printf("WARNING: task %q raised a request while one is outstanding; keeping the first", taskID)
		return
	}
	c.pending[taskID] = req
	if task, ok := c.tasks[taskID]; ok && sessionID != "" {
		task.SessionID = sessionID
		task.UpdatedAt = time.Now()
	}
	c.mu.Unlock()

	if c.disband != nil {
		c.disband.Cancel(agentID)
	}
	c.saveSession(context.Background(), taskID, agentID, sessionID)
	c.setTeamStatus(agentID, status)
	c.bus.Publish(events.TopicRequest, events.RequestRaisedEvent{
		ID: taskID, Request: req, Timestamp: time.Now(),
	})
}

// --- interactive resolutions ----------------------------------------------

// DismissDangerousCommand lets the flagged command run. When the process
// is still blocked on its checkpoint the answer goes over stdin; when it
// has died in the meantime the session is resumed with a neutral prompt.
func (c *Coordinator) DismissDangerousCommand(ctx context.Context, taskID string) error {
	c.mu.Lock()
	req, ok := c.pending[taskID].(interact.DangerousCommandAlert)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("task %q has no pending dangerous-command alert", taskID)
	}
	delete(c.pending, taskID)
	task := c.tasks[taskID]
	var sessionID string
	if task != nil {
		sessionID = task.SessionID
	}
	c.mu.Unlock()

	starter := c.getStarter()
	if starter == nil {
		return fmt.Errorf("no process starter configured")
	}

	if starter.HasLive(taskID) {
		if err := starter.RespondPermission(taskID, req.RequestID, "allow"); err != nil {
			return fmt.Errorf("answering permission checkpoint: %w", err)
		}
		c.setTeamStatus(req.AgentID, agent.StatusWorking)
	} else {
		if err := c.resume(ctx, taskID, req.AgentID, sessionID, interact.ContinuePrompt); err != nil {
			return err
		}
	}

	c.bus.Publish(events.TopicRequest, events.RequestClearedEvent{
		ID: taskID, Resolution: "dismissed", Timestamp: time.Now(),
	})
	return nil
}

// CancelDangerousCommand refuses the flagged command by terminating the
// whole task.
func (c *Coordinator) CancelDangerousCommand(taskID string) error {
	c.mu.Lock()
	_, ok := c.pending[taskID].(interact.DangerousCommandAlert)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("task %q has no pending dangerous-command alert", taskID)
	}
	delete(c.pending, taskID)
	c.mu.Unlock()

	if starter := c.getStarter(); starter != nil {
		starter.Cancel(taskID)
	}

	c.bus.Publish(events.TopicRequest, events.RequestClearedEvent{
		ID: taskID, Resolution: "cancelled", Timestamp: time.Now(),
	})
	c.cancelTask(taskID, "cancelled at permission checkpoint")
	return nil
}

// SubmitAnswers resolves a pending question request by resuming the
// session with the formatted answers.
func (c *Coordinator) SubmitAnswers(ctx context.Context, taskID string, answers []interact.Answer) error {
	c.mu.Lock()
	req, ok := c.pending[taskID].(interact.AskUserQuestionRequest)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("task %q has no pending question", taskID)
	}
	delete(c.pending, taskID)
	c.mu.Unlock()

	prompt := interact.FormatAnswers(answers)
	if err := c.resume(ctx, taskID, req.AgentID, req.SessionID, prompt); err != nil {
		return err
	}

	c.bus.Publish(events.TopicRequest, events.RequestClearedEvent{
		ID: taskID, Resolution: "answered", Timestamp: time.Now(),
	})
	return nil
}

// ApprovePlan resolves a pending plan review by resuming the session with
// an approval.
func (c *Coordinator) ApprovePlan(ctx context.Context, taskID string) error {
	return c.resolvePlan(ctx, taskID, interact.FormatPlanApproval(), "approved")
}

// RejectPlan resolves a pending plan review by resuming the session with
// a rejection, optionally carrying operator feedback.
func (c *Coordinator) RejectPlan(ctx context.Context, taskID, feedback string) error {
	return c.resolvePlan(ctx, taskID, interact.FormatPlanRejection(feedback), "rejected")
}

func (c *Coordinator) resolvePlan(ctx context.Context, taskID, prompt, resolution string) error {
	c.mu.Lock()
	req, ok := c.pending[taskID].(interact.PlanReviewRequest)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("task %q has no pending plan review", taskID)
	}
	delete(c.pending, taskID)
	c.mu.Unlock()

	if err := c.resume(ctx, taskID, req.AgentID, req.SessionID, prompt); err != nil {
		return err
	}

	c.bus.Publish(events.TopicRequest, events.RequestClearedEvent{
		ID: taskID, Resolution: resolution, Timestamp: time.Now(),
	})
	return nil
}

// resume starts a new process bound to the task's existing session. The
// supervisor guarantees the prior process has fully terminated before the
// new one attributes events to the commander.
func (c *Coordinator) resume(ctx context.Context, taskID, agentID, sessionID, prompt string) error {
	starter := c.getStarter()
	if starter == nil {
		return fmt.Errorf("no process starter configured")
	}
	if sessionID == "" {
		return fmt.Errorf("task %q has no session to resume", taskID)
	}

	c.setTeamStatus(agentID, agent.StatusWorking)

	newSession, err := starter.Start(backend.StartOptions{
		TaskID:          taskID,
		AgentID:         agentID,
		Prompt:          prompt,
		WorkDir:         c.workDir,
		ResumeSessionID: sessionID,
	})
	if err != nil {
		c.failTask(taskID, fmt.Sprintf("resuming agent process: %v", err))
		return err
	}

	c.mu.Lock()
	if task, ok := c.tasks[taskID]; ok {
		task.SessionID = newSession
		task.UpdatedAt = time.Now()
	}
	c.mu.Unlock()

	c.saveSession(ctx, taskID, agentID, newSession)
	return nil
}

// --- internals ------------------------------------------------------------

// failTask ends a task on a process failure: the record turns failed and
// the team shows error.
func (c *Coordinator) failTask(taskID, errText string) {
	c.endTask(taskID, errText, agent.StatusError)
}

// cancelTask ends a task on an operator cancellation: the record turns
// failed but the team returns to idle, ready for new work.
func (c *Coordinator) cancelTask(taskID, errText string) {
	c.endTask(taskID, errText, agent.StatusIdle)
}

func (c *Coordinator) endTask(taskID, errText string, teamStatus agent.Status) {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	var commanderID string
	if ok && !task.IsTerminal() {
		task.Status = TaskFailed
		task.Error = errText
		task.UpdatedAt = time.Now()
		commanderID = task.AgentID
	} else {
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	c.setTeamStatus(commanderID, teamStatus)
	c.publishTask(taskID)
}

// setTeamStatus applies a commander status, propagates it to every
// descendant per the status table, and publishes the resulting statuses.
func (c *Coordinator) setTeamStatus(commanderID string, status agent.Status) {
	if err := c.roster.SetStatus(commanderID, status); err != nil {
		log.Printf("WARNING: setting status for %q: %v", commanderID, err)
		return
	}

	now := time.Now()
	c.bus.Publish(events.TopicAgent, events.AgentStatusEvent{
		AgentID: commanderID, Status: status, Timestamp: now,
	})
	derived := agent.DescendantStatus(status)
	for _, id := range c.roster.Descendants(commanderID) {
		c.bus.Publish(events.TopicAgent, events.AgentStatusEvent{
			AgentID: id, Status: derived, Timestamp: now,
		})
	}
}

func (c *Coordinator) publishTask(taskID string) {
	task, ok := c.Task(taskID)
	if !ok {
		return
	}
	c.bus.Publish(events.TopicTask, events.TaskUpdatedEvent{
		ID:        task.ID,
		AgentID:   task.AgentID,
		Status:    string(task.Status),
		Progress:  task.Progress,
		Result:    task.Result,
		Error:     task.Error,
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) saveSession(ctx context.Context, taskID, agentID, sessionID string) {
	if c.store == nil || sessionID == "" {
		return
	}
	if err := c.store.SaveSession(ctx, taskID, agentID, sessionID); err != nil {
		log.Printf("WARNING: persisting session for task %q: %v", taskID, err)
	}
}

// maybeScheduleDisband arms the disband scheduler once the whole team is
// completed and the commander has no non-terminal task.
func (c *Coordinator) maybeScheduleDisband(commanderID string) {
	if c.disband == nil {
		return
	}

	allDone := func() bool {
		if !c.roster.AllCompleted(commanderID) {
			return false
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, t := range c.tasks {
			if t.AgentID == commanderID && !t.IsTerminal() {
				return false
			}
		}
		return true
	}

	if !allDone() {
		return
	}

	c.disband.ScheduleIfNeeded(commanderID, allDone,
		func() { c.announceDisband(commanderID) },
		func() { c.finalizeDisband(commanderID) },
	)
}

func (c *Coordinator) announceDisband(commanderID string) {
	c.roster.Suspend(commanderID)
	now := time.Now()
	for _, id := range c.roster.Team(commanderID) {
		c.bus.Publish(events.TopicAgent, events.AgentStatusEvent{
			AgentID: id, Status: agent.StatusSuspended, Timestamp: now,
		})
	}
	c.bus.Publish(events.TopicTeam, events.TeamDisbandingEvent{
		CommanderID: commanderID, Timestamp: now,
	})
}

func (c *Coordinator) finalizeDisband(commanderID string) {
	order, err := c.roster.TeardownOrder(commanderID)
	if err != nil {
		log.Printf("ERROR: computing teardown order for %q: %v", commanderID, err)
		order = c.roster.Team(commanderID)
	}

	c.mu.Lock()
	var removedTasks []string
	for id, t := range c.tasks {
		if t.AgentID == commanderID {
			removedTasks = append(removedTasks, id)
			delete(c.tasks, id)
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		for _, taskID := range removedTasks {
			if err := c.store.DeleteSession(context.Background(), taskID); err != nil {
				log.Printf("WARNING: deleting session for task %q: %v", taskID, err)
			}
		}
	}

	c.roster.Remove(order)
	c.bus.Publish(events.TopicTeam, events.TeamDisbandedEvent{
		CommanderID: commanderID, MemberIDs: order, Timestamp: time.Now(),
	})
}
