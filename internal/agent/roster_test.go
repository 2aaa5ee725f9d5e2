package agent

import (
	"testing"
)

// buildTeam creates a commander with two direct subordinates, one of which
// has a subordinate of its own (three levels total).
func buildTeam(t *testing.T) *Roster {
	t.Helper()

	r := NewRoster()
	agents := []*Agent{
		{ID: "cmd", Role: "commander", Status: StatusIdle},
		{ID: "sub1", ParentID: "cmd", Role: "coder", Status: StatusIdle},
		{ID: "sub2", ParentID: "cmd", Role: "reviewer", Status: StatusIdle},
		{ID: "sub1a", ParentID: "sub1", Role: "tester", Status: StatusIdle},
	}
	for _, a := range agents {
		if err := r.Add(a); err != nil {
			t.Fatalf("Add(%q) failed: %v", a.ID, err)
		}
	}
	return r
}

// TestRoster_AddDuplicate verifies duplicate IDs are rejected.
func TestRoster_AddDuplicate(t *testing.T) {
	r := NewRoster()
	if err := r.Add(&Agent{ID: "a1"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Add(&Agent{ID: "a1"}); err == nil {
		t.Error("Expected error adding duplicate agent ID")
	}
}

// TestRoster_AddUnknownParent verifies a dangling ParentID is rejected.
func TestRoster_AddUnknownParent(t *testing.T) {
	r := NewRoster()
	if err := r.Add(&Agent{ID: "a1", ParentID: "ghost"}); err == nil {
		t.Error("Expected error adding agent with non-existent parent")
	}
}

// TestRoster_Descendants verifies transitive descendant computation.
func TestRoster_Descendants(t *testing.T) {
	r := buildTeam(t)

	got := r.Descendants("cmd")
	want := []string{"sub1", "sub1a", "sub2"}
	if len(got) != len(want) {
		t.Fatalf("Descendants = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Descendants[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestRoster_Team verifies the team snapshot is commander-first.
func TestRoster_Team(t *testing.T) {
	r := buildTeam(t)

	team := r.Team("cmd")
	if len(team) != 4 {
		t.Fatalf("Team size = %d, want 4", len(team))
	}
	if team[0] != "cmd" {
		t.Errorf("Team[0] = %q, want commander first", team[0])
	}
}

// TestRoster_SetStatus_PropagatesExhaustively drives the commander through
// every status value and checks each descendant — including the transitive
// one — lands on the table value.
func TestRoster_SetStatus_PropagatesExhaustively(t *testing.T) {
	for _, status := range AllStatuses {
		r := buildTeam(t)

		if err := r.SetStatus("cmd", status); err != nil {
			t.Fatalf("SetStatus(%q) failed: %v", status, err)
		}

		want := DescendantStatus(status)
		for _, id := range []string{"sub1", "sub2", "sub1a"} {
			a, ok := r.Get(id)
			if !ok {
				t.Fatalf("agent %q missing", id)
			}
			if a.Status != want {
				t.Errorf("commander %q: descendant %q has status %q, want %q", status, id, a.Status, want)
			}
		}

		commander, _ := r.Get("cmd")
		if commander.Status != status {
			t.Errorf("commander status = %q, want %q", commander.Status, status)
		}
	}
}

// TestRoster_SetStatus_UnknownAgent verifies unknown IDs error rather than
// silently creating records.
func TestRoster_SetStatus_UnknownAgent(t *testing.T) {
	r := NewRoster()
	if err := r.SetStatus("ghost", StatusWorking); err == nil {
		t.Error("Expected error for unknown agent")
	}
}

// TestRoster_AllCompleted verifies the disband precondition check.
func TestRoster_AllCompleted(t *testing.T) {
	r := buildTeam(t)

	if r.AllCompleted("cmd") {
		t.Error("idle team should not report all-completed")
	}

	if err := r.SetStatus("cmd", StatusCompleted); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if !r.AllCompleted("cmd") {
		t.Error("completed team should report all-completed")
	}

	// Reactivation flips it back off.
	if err := r.SetStatus("cmd", StatusWorking); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if r.AllCompleted("cmd") {
		t.Error("working team should not report all-completed")
	}
}

// TestRoster_TeardownOrder verifies children are ordered before the agents
// they report to, with the commander last.
func TestRoster_TeardownOrder(t *testing.T) {
	r := buildTeam(t)

	order, err := r.TeardownOrder("cmd")
	if err != nil {
		t.Fatalf("TeardownOrder failed: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("TeardownOrder returned %d agents, want 4", len(order))
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	if pos["sub1a"] > pos["sub1"] {
		t.Error("sub1a must be torn down before its parent sub1")
	}
	if pos["sub1"] > pos["cmd"] || pos["sub2"] > pos["cmd"] {
		t.Error("commander must be torn down last")
	}
}

// TestRoster_SuspendAndRemove verifies the disband teardown path: suspend
// the team, then remove it from the arena.
func TestRoster_SuspendAndRemove(t *testing.T) {
	r := buildTeam(t)

	r.Suspend("cmd")
	for _, a := range r.Agents() {
		if a.Status != StatusSuspended {
			t.Errorf("agent %q status = %q, want suspended", a.ID, a.Status)
		}
	}

	r.Remove(r.Team("cmd"))
	if len(r.Agents()) != 0 {
		t.Errorf("Expected empty roster after removal, got %d agents", len(r.Agents()))
	}
}

// TestRoster_GetReturnsClone verifies mutations of returned records do not
// leak back into the arena.
func TestRoster_GetReturnsClone(t *testing.T) {
	r := buildTeam(t)

	a, _ := r.Get("cmd")
	a.Status = StatusError

	fresh, _ := r.Get("cmd")
	if fresh.Status == StatusError {
		t.Error("mutating a returned agent should not affect the arena")
	}
}
