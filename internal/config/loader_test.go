package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadDefaults verifies Load with no files returns the built-in defaults.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CLI.Command != "claude" {
		t.Errorf("CLI.Command = %q, want claude", cfg.CLI.Command)
	}
	if len(cfg.Team.Roles) != 3 {
		t.Errorf("Team.Roles = %v, want 3 roles", cfg.Team.Roles)
	}
	if cfg.Disband.DelayMS != 5000 || cfg.Disband.GraceMS != 1200 {
		t.Errorf("Disband = %+v, want 5000/1200", cfg.Disband)
	}
}

// TestLoadSkipsMissingFiles verifies nonexistent paths are ignored.
func TestLoadSkipsMissingFiles(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CLI.Command != "claude" {
		t.Errorf("CLI.Command = %q, want claude", cfg.CLI.Command)
	}
}

// TestLoadOverlay verifies later files override earlier ones field by field.
func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.json")
	project := filepath.Join(dir, "project.json")

	writeFile(t, global, `{"cli":{"command":"claude-dev","model":"opus"},"disband":{"delay_ms":100}}`)
	writeFile(t, project, `{"cli":{"model":"sonnet"},"team":{"roles":["coder"]}}`)

	cfg, err := Load(global, project)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CLI.Command != "claude-dev" {
		t.Errorf("CLI.Command = %q, want claude-dev", cfg.CLI.Command)
	}
	if cfg.CLI.Model != "sonnet" {
		t.Errorf("CLI.Model = %q, want sonnet (project overrides global)", cfg.CLI.Model)
	}
	if cfg.Disband.DelayMS != 100 {
		t.Errorf("Disband.DelayMS = %d, want 100", cfg.Disband.DelayMS)
	}
	if cfg.Disband.GraceMS != 1200 {
		t.Errorf("Disband.GraceMS = %d, want default 1200", cfg.Disband.GraceMS)
	}
	if len(cfg.Team.Roles) != 1 || cfg.Team.Roles[0] != "coder" {
		t.Errorf("Team.Roles = %v, want [coder]", cfg.Team.Roles)
	}
}

// TestLoadInvalidJSON verifies a malformed config file is an error.
func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, `{not json`)
	if _, err := Load(path); err == nil {
		t.Error("Load succeeded on malformed JSON, want error")
	}
}

// TestLoadRejectsNegativeTimings verifies validation of disband timings.
func TestLoadRejectsNegativeTimings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.json")
	writeFile(t, path, `{"disband":{"delay_ms":-1}}`)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted negative delay, want error")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
