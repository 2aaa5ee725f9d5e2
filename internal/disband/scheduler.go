// Package disband delays and finalizes the teardown of fully-completed
// teams. Jobs are cancellable up to the moment the teardown finalizes, so
// a team that resumes work is never removed mid-flight.
package disband

import (
	"sync"
	"time"
)

// Scheduler keeps one cancellable delayed job per commander ID.
type Scheduler struct {
	delay time.Duration // grace period before a completed team is torn down
	grace time.Duration // time given to the presentation layer's transition

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	cancel chan struct{}
	once   sync.Once
}

func (j *job) stop() {
	j.once.Do(func() { close(j.cancel) })
}

// NewScheduler creates a scheduler with the given disband delay and
// teardown grace.
func NewScheduler(delay, grace time.Duration) *Scheduler {
	return &Scheduler{
		delay: delay,
		grace: grace,
		jobs:  make(map[string]*job),
	}
}

// ScheduleIfNeeded arms a disband job for the commander unless one is
// already armed or in flight, or the team is not fully completed.
// allCompleted is re-checked when the delay elapses — the team may have
// been reactivated in the meantime. announce runs before the teardown
// grace so the presentation layer can play its transition; finalize runs
// after it and removes the team from the model. Returns whether a job
// was armed.
func (s *Scheduler) ScheduleIfNeeded(commanderID string, allCompleted func() bool, announce, finalize func()) bool {
	s.mu.Lock()
	if _, exists := s.jobs[commanderID]; exists {
		s.mu.Unlock()
		return false
	}
	if !allCompleted() {
		s.mu.Unlock()
		return false
	}

	j := &job{cancel: make(chan struct{})}
	s.jobs[commanderID] = j
	s.mu.Unlock()

	go s.run(commanderID, j, allCompleted, announce, finalize)
	return true
}

func (s *Scheduler) run(commanderID string, j *job, allCompleted func() bool, announce, finalize func()) {
	defer s.remove(commanderID, j)

	select {
	case <-time.After(s.delay):
	case <-j.cancel:
		return
	}

	if !allCompleted() {
		return
	}

	announce()

	select {
	case <-time.After(s.grace):
	case <-j.cancel:
		return
	}

	finalize()
}

// Cancel disarms any pending or in-flight job for the commander. Called
// whenever a member of the commander's team transitions back to working
// or thinking. Idempotent.
func (s *Scheduler) Cancel(commanderID string) {
	s.mu.Lock()
	j, exists := s.jobs[commanderID]
	if exists {
		delete(s.jobs, commanderID)
	}
	s.mu.Unlock()

	if exists {
		j.stop()
	}
}

// Armed reports whether a job is pending or in flight for the commander.
func (s *Scheduler) Armed(commanderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.jobs[commanderID]
	return exists
}

func (s *Scheduler) remove(commanderID string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, exists := s.jobs[commanderID]; exists && current == j {
		delete(s.jobs, commanderID)
	}
}
