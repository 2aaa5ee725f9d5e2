// Package backend is the process supervisor for external agent CLI
// processes. It starts a process per task, streams and parses its
// line-oriented event output without blocking the caller, and raises
// typed callbacks. It has no knowledge of teams or hierarchy.
package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/protocol"
)

// ErrNoLiveProcess is returned when an operation requires a live process
// handle for a task and none exists.
var ErrNoLiveProcess = errors.New("no live process for task")

const stderrTailLines = 20

// Supervisor owns zero or more running agent processes, at most one per
// task.
type Supervisor struct {
	cfg Config
	pm  *ProcessManager
	cb  Callbacks

	mu      sync.Mutex
	handles map[string]*Handle // taskID -> live handle
}

// NewSupervisor creates a supervisor. The ProcessManager is optional —
// if nil, subprocesses are not tracked for shutdown cleanup.
func NewSupervisor(cfg Config, pm *ProcessManager, cb Callbacks) *Supervisor {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	return &Supervisor{
		cfg:     cfg,
		pm:      pm,
		cb:      cb,
		handles: make(map[string]*Handle),
	}
}

// Handle is one live agent process bound to a task. Exactly one handle
// exists per task at any instant.
type Handle struct {
	TaskID  string
	AgentID string

	sup       *Supervisor
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	sessionID string
	done      chan struct{}

	// deliverMu serializes callback delivery against Cancel: after
	// Cancel returns, no further callbacks fire for this handle.
	deliverMu sync.Mutex
	cancelled bool

	// Reader-goroutine state; touched only from the stdout reader.
	toolCalls      int
	working        bool
	terminal       bool
	awaitingResume bool

	stderrMu   sync.Mutex
	stderrTail []string
}

// SessionID returns the session identifier the handle is bound to. The
// reader goroutine updates it as events carrying a session arrive, so it
// is guarded by deliverMu.
func (h *Handle) SessionID() string {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	return h.sessionID
}

// Done returns a channel closed once the process has fully terminated
// and its reader loop has drained.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start spawns the agent CLI for a task. It fails synchronously when the
// binary cannot be located, the working directory is invalid, or the
// task already has a live process. A resume (ResumeSessionID set) waits
// for the prior handle of the same task to fully terminate first, so two
// live processes never attribute events to the same commander.
func (s *Supervisor) Start(opts StartOptions) (*Handle, error) {
	binary, err := exec.LookPath(s.cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("agent binary %q not found: %w", s.cfg.Command, err)
	}

	if opts.WorkDir != "" {
		info, err := os.Stat(opts.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("invalid working directory %q: %w", opts.WorkDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("working directory %q is not a directory", opts.WorkDir)
		}
	}

	s.mu.Lock()
	for {
		prior := s.handles[opts.TaskID]
		if prior == nil {
			break
		}
		if opts.ResumeSessionID == "" {
			s.mu.Unlock()
			return nil, fmt.Errorf("task %q already has a live process", opts.TaskID)
		}
		s.mu.Unlock()
		<-prior.done
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	sessionID := opts.ResumeSessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cmd := newCommand(context.Background(), binary, buildArgs(s.cfg, opts.Prompt, sessionID, opts.ResumeSessionID)...)
	cmd.Dir = opts.WorkDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start agent process: %w", err)
	}

	if s.pm != nil {
		s.pm.Track(cmd)
	}

	h := &Handle{
		TaskID:    opts.TaskID,
		AgentID:   opts.AgentID,
		sup:       s,
		cmd:       cmd,
		stdin:     stdin,
		sessionID: sessionID,
		done:      make(chan struct{}),
	}
	s.handles[opts.TaskID] = h

	go s.run(h, stdout, stderr)
	return h, nil
}

// Cancel terminates the task's process and guarantees no further
// callbacks fire for that task after it returns. Idempotent if the
// process has already exited.
func (s *Supervisor) Cancel(taskID string) {
	s.mu.Lock()
	h := s.handles[taskID]
	delete(s.handles, taskID)
	s.mu.Unlock()

	if h == nil {
		return
	}

	h.deliverMu.Lock()
	h.cancelled = true
	h.deliverMu.Unlock()

	if err := killProcessGroup(h.cmd); err != nil {
		// Already exited; nothing left to kill.
		log.Printf("WARNING: cancel task %q: %v", taskID, err)
	}

	<-h.done
}

// RespondPermission answers an in-flight permission checkpoint on the
// task's live process. behavior is "allow" or "deny". Returns
// ErrNoLiveProcess if the process has already exited.
func (s *Supervisor) RespondPermission(taskID, requestID, behavior string) error {
	s.mu.Lock()
	h := s.handles[taskID]
	s.mu.Unlock()

	if h == nil {
		return fmt.Errorf("task %q: %w", taskID, ErrNoLiveProcess)
	}

	data, err := protocol.ControlResponse(requestID, behavior)
	if err != nil {
		return err
	}
	if _, err := h.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write control response: %w", err)
	}
	return nil
}

// HasLive reports whether the task currently has a live process handle.
func (s *Supervisor) HasLive(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[taskID] != nil
}

// run drains stdout and stderr concurrently, waits for the process to
// exit, then dispatches the exit outcome. Concurrent draining prevents
// pipe-buffer deadlocks when output exceeds the pipe capacity.
func (s *Supervisor) run(h *Handle, stdout, stderr io.ReadCloser) {
	var g errgroup.Group
	g.Go(func() error {
		s.readEvents(h, stdout)
		return nil
	})
	g.Go(func() error {
		h.readStderr(stderr)
		return nil
	})
	_ = g.Wait()

	waitErr := h.cmd.Wait()

	if s.pm != nil {
		s.pm.Untrack(h.cmd)
	}

	s.mu.Lock()
	if s.handles[h.TaskID] == h {
		delete(s.handles, h.TaskID)
	}
	s.mu.Unlock()
	close(h.done)

	s.dispatchExit(h, waitErr)
}

// readEvents consumes stdout line by line. Each line is one
// self-contained event; unparseable lines are dropped with a diagnostic.
func (s *Supervisor) readEvents(h *Handle, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		events, err := protocol.Parse([]byte(line))
		if err != nil {
			log.Printf("WARNING: task %q: dropping malformed event line: %v", h.TaskID, err)
			continue
		}
		for _, ev := range events {
			s.handleEvent(h, ev)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("ERROR: task %q: reading process output: %v", h.TaskID, err)
	}
}

func (s *Supervisor) handleEvent(h *Handle, ev protocol.Event) {
	if ev.SessionID != "" {
		h.deliverMu.Lock()
		h.sessionID = ev.SessionID
		h.deliverMu.Unlock()
	}

	switch ev.Kind {
	case protocol.KindInit:
		h.deliver(func() {
			if s.cb.OnStatusChange != nil {
				s.cb.OnStatusChange(h.AgentID, agent.StatusThinking)
			}
		})

	case protocol.KindText:
		h.markWorking(s.cb)
		h.deliver(func() {
			if s.cb.OnOutput != nil {
				s.cb.OnOutput(h.TaskID, ev.Text)
			}
		})

	case protocol.KindToolUse:
		h.markWorking(s.cb)
		h.toolCalls++
		progress := progressEstimate(h.toolCalls)
		h.deliver(func() {
			if s.cb.OnProgress != nil {
				s.cb.OnProgress(h.TaskID, progress)
			}
		})

	case protocol.KindCompleted:
		h.terminal = true
		h.deliver(func() {
			if s.cb.OnCompleted != nil {
				s.cb.OnCompleted(h.TaskID, ev.Result)
			}
		})

	case protocol.KindFailed:
		h.terminal = true
		h.deliver(func() {
			if s.cb.OnFailed != nil {
				s.cb.OnFailed(h.TaskID, ev.ErrorText)
			}
		})

	case protocol.KindPermissionRequest:
		h.deliverInteractive(s.cb, ev)

	case protocol.KindQuestion:
		h.awaitingResume = true
		h.deliverInteractive(s.cb, ev)

	case protocol.KindPlanReview:
		h.awaitingResume = true
		h.deliverInteractive(s.cb, ev)
	}
}

// deliverInteractive hands an interactive checkpoint to the callback with
// the handle's session stamped in, since individual events may omit the
// session field the resume needs.
func (h *Handle) deliverInteractive(cb Callbacks, ev protocol.Event) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.cancelled {
		return
	}
	ev.SessionID = h.sessionID
	if cb.OnInteractive != nil {
		cb.OnInteractive(h.TaskID, h.AgentID, ev)
	}
}

// dispatchExit surfaces a process exit that produced no terminal event.
// An exit at an interactive checkpoint is expected and awaits resume; a
// nonzero exit (or a clean exit without a result) is a task failure with
// captured stderr as context.
func (s *Supervisor) dispatchExit(h *Handle, waitErr error) {
	if h.terminal || h.awaitingResume {
		return
	}

	var msg string
	if waitErr != nil {
		msg = fmt.Sprintf("process exited: %v", waitErr)
	} else {
		msg = "process exited without a result"
	}
	if tail := h.tail(); tail != "" {
		msg += "\nstderr: " + tail
	}

	h.deliver(func() {
		if s.cb.OnFailed != nil {
			s.cb.OnFailed(h.TaskID, msg)
		}
	})
}

// deliver runs fn unless the handle was cancelled. Holding deliverMu
// across the callback is what makes the Cancel guarantee hold.
func (h *Handle) deliver(fn func()) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.cancelled {
		return
	}
	fn()
}

func (h *Handle) markWorking(cb Callbacks) {
	if h.working {
		return
	}
	h.working = true
	h.deliver(func() {
		if cb.OnStatusChange != nil {
			cb.OnStatusChange(h.AgentID, agent.StatusWorking)
		}
	})
}

func (h *Handle) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 4096), 1024*1024)

	for scanner.Scan() {
		h.stderrMu.Lock()
		h.stderrTail = append(h.stderrTail, scanner.Text())
		if len(h.stderrTail) > stderrTailLines {
			h.stderrTail = h.stderrTail[len(h.stderrTail)-stderrTailLines:]
		}
		h.stderrMu.Unlock()
	}
}

func (h *Handle) tail() string {
	h.stderrMu.Lock()
	defer h.stderrMu.Unlock()
	return strings.Join(h.stderrTail, "\n")
}

// progressEstimate maps a cumulative tool-call count onto (0, 0.95]. The
// estimate is monotonic; 1.0 is reserved for actual completion.
func progressEstimate(toolCalls int) float64 {
	p := float64(toolCalls) / float64(toolCalls+4)
	if p > 0.95 {
		p = 0.95
	}
	return p
}
