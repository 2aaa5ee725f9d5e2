package backend

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

// TestProcessManager_TrackUntrack verifies the tracked-process count
// follows Track/Untrack.
func TestProcessManager_TrackUntrack(t *testing.T) {
	pm := NewProcessManager()

	cmd := newCommand(context.Background(), "sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		_ = killProcessGroup(cmd)
		_ = cmd.Wait()
	}()

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Count = %d, want 1", pm.Count())
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Count = %d, want 0 after Untrack", pm.Count())
	}
}

// TestProcessManager_TrackNilProcess verifies tracking an unstarted
// command is a no-op.
func TestProcessManager_TrackNilProcess(t *testing.T) {
	pm := NewProcessManager()

	pm.Track(exec.Command("true"))
	if pm.Count() != 0 {
		t.Errorf("Count = %d, want 0 for unstarted command", pm.Count())
	}
}

// TestProcessManager_KillAll verifies all tracked process groups are
// terminated.
func TestProcessManager_KillAll(t *testing.T) {
	pm := NewProcessManager()

	cmds := make([]*exec.Cmd, 0, 3)
	for i := 0; i < 3; i++ {
		cmd := newCommand(context.Background(), "sleep", "30")
		if err := cmd.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		pm.Track(cmd)
		cmds = append(cmds, cmd)
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}

	for _, cmd := range cmds {
		done := make(chan error, 1)
		go func(c *exec.Cmd) { done <- c.Wait() }(cmd)

		select {
		case err := <-done:
			if err == nil {
				t.Error("Expected nonzero exit for killed process")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("killed process did not exit")
		}
	}
}

// TestKillProcessGroup_NotStarted verifies the error path for a command
// that never started.
func TestKillProcessGroup_NotStarted(t *testing.T) {
	if err := killProcessGroup(exec.Command("true")); err == nil {
		t.Error("Expected error for unstarted process")
	}
}
