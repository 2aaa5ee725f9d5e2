package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/example/taskforce/internal/backend"
)

// TestProcessManagerKillAllOnShutdown verifies that tracked subprocesses
// are terminated during simulated shutdown.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := backend.NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}

	pm.Track(cmd)
	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	pm.Untrack(cmd)
	if count := pm.Count(); count != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", count)
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
