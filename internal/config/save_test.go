package config

import (
	"path/filepath"
	"testing"
)

// TestSaveRoundTrip verifies a saved config loads back with the same values.
func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.CLI.Model = "opus"
	cfg.Team.Roles = []string{"coder", "tester"}
	cfg.Disband.DelayMS = 250

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CLI.Model != "opus" {
		t.Errorf("CLI.Model = %q, want opus", loaded.CLI.Model)
	}
	if len(loaded.Team.Roles) != 2 {
		t.Errorf("Team.Roles = %v, want 2 roles", loaded.Team.Roles)
	}
	if loaded.Disband.DelayMS != 250 {
		t.Errorf("Disband.DelayMS = %d, want 250", loaded.Disband.DelayMS)
	}
}
