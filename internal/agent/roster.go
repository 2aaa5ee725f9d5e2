package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// Roster is the arena of agent records. All reads hand out clones so
// callers never hold aliases into the arena.
type Roster struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		agents: make(map[string]*Agent),
	}
}

// Add inserts an agent record. Returns an error if the ID already exists
// or if a non-empty ParentID references an unknown agent.
func (r *Roster) Add(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("agent with ID %q already exists", a.ID)
	}
	if a.ParentID != "" {
		if _, exists := r.agents[a.ParentID]; !exists {
			return fmt.Errorf("agent %q references non-existent parent %q", a.ID, a.ParentID)
		}
	}

	cp := *a
	r.agents[a.ID] = &cp
	return nil
}

// Get returns a clone of the agent by ID.
func (r *Roster) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.agents[id]
	if !exists {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// Agents returns clones of all agent records.
func (r *Roster) Agents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Descendants returns the IDs of every agent transitively subordinate to
// the given commander, computed by filtering on ParentID.
func (r *Roster) Descendants(commanderID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descendantsLocked(commanderID)
}

func (r *Roster) descendantsLocked(commanderID string) []string {
	var out []string
	frontier := []string{commanderID}
	for len(frontier) > 0 {
		next := []string{}
		for _, parent := range frontier {
			for id, a := range r.agents {
				if a.ParentID == parent {
					out = append(out, id)
					next = append(next, id)
				}
			}
		}
		frontier = next
	}
	sort.Strings(out)
	return out
}

// Team returns the commander ID followed by all its current descendant IDs.
// This is the snapshot captured into a task at creation time.
func (r *Roster) Team(commanderID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.agents[commanderID]; !exists {
		return nil
	}
	return append([]string{commanderID}, r.descendantsLocked(commanderID)...)
}

// SetStatus sets a commander's status and applies the propagation table to
// every one of its current descendants. Returns an error for unknown IDs.
// Only commander-level changes go through here; descendants are derived.
func (r *Roster) SetStatus(commanderID string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	commander, exists := r.agents[commanderID]
	if !exists {
		return fmt.Errorf("agent %q not found", commanderID)
	}

	commander.Status = status
	derived := DescendantStatus(status)
	for _, id := range r.descendantsLocked(commanderID) {
		r.agents[id].Status = derived
	}
	return nil
}

// Statuses returns the current status of each requested agent ID.
func (r *Roster) Statuses(ids []string) map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Status, len(ids))
	for _, id := range ids {
		if a, exists := r.agents[id]; exists {
			out[id] = a.Status
		}
	}
	return out
}

// AllCompleted reports whether the commander and every current descendant
// are in StatusCompleted. False if the commander is unknown.
func (r *Roster) AllCompleted(commanderID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commander, exists := r.agents[commanderID]
	if !exists {
		return false
	}
	if commander.Status != StatusCompleted {
		return false
	}
	for _, id := range r.descendantsLocked(commanderID) {
		if r.agents[id].Status != StatusCompleted {
			return false
		}
	}
	return true
}

// TeardownOrder returns the commander's team ordered children-first, so a
// disband removes leaves before the agents they report to. The ordering is
// a topological sort over ParentID edges; a cycle in parent references is
// a corrupted arena and surfaces as an error.
func (r *Roster) TeardownOrder(commanderID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.agents[commanderID]; !exists {
		return nil, fmt.Errorf("agent %q not found", commanderID)
	}

	members := append([]string{commanderID}, r.descendantsLocked(commanderID)...)
	inTeam := make(map[string]bool, len(members))
	for _, id := range members {
		inTeam[id] = true
	}

	// Edge (child, parent): a child must come before its parent.
	var edges []toposort.Edge
	for _, id := range members {
		a := r.agents[id]
		if a.ParentID != "" && inTeam[a.ParentID] {
			edges = append(edges, toposort.Edge{id, a.ParentID})
		} else {
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("agent hierarchy contains cycle: %w", err)
	}

	order := make([]string, 0, len(members))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(members) {
		missing := []string{}
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for _, id := range members {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("teardown order lost %d agents: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// Remove deletes agents from the arena. Unknown IDs are ignored; removal
// happens during disband teardown after statuses were set to suspended.
func (r *Roster) Remove(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.agents, id)
	}
}

// Suspend marks every member of the commander's team suspended. This is
// the one place a descendant status is written outside the propagation
// table, and it still goes through the commander.
func (r *Roster) Suspend(commanderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if commander, exists := r.agents[commanderID]; exists {
		commander.Status = StatusSuspended
	}
	for _, id := range r.descendantsLocked(commanderID) {
		r.agents[id].Status = StatusSuspended
	}
}
