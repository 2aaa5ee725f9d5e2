// Package config loads and persists taskforce configuration.
package config

// Config holds all taskforce settings.
type Config struct {
	// CLI configures the agent CLI binary used for every spawned process.
	CLI CLIConfig `json:"cli"`

	// Team configures the sub-agent roster spawned alongside each commander.
	Team TeamConfig `json:"team"`

	// Disband configures the two-phase team teardown timing.
	Disband DisbandConfig `json:"disband"`

	// WorkDir is the working directory for spawned processes.
	// Empty means the current directory.
	WorkDir string `json:"work_dir,omitempty"`

	// StorePath is the sqlite database file for session persistence.
	// Empty means .taskforce/sessions.db under the working directory.
	StorePath string `json:"store_path,omitempty"`
}

// CLIConfig describes how to invoke the agent binary.
type CLIConfig struct {
	// Command is the binary name or path. Defaults to "claude".
	Command string `json:"command"`

	// Args are extra arguments appended after the generated ones.
	Args []string `json:"args,omitempty"`

	// Model is passed via --model when set.
	Model string `json:"model,omitempty"`

	// PermissionMode is passed via --permission-mode when set.
	PermissionMode string `json:"permission_mode,omitempty"`
}

// TeamConfig describes the sub-agents spawned for a new team.
type TeamConfig struct {
	// Roles are the sub-agent roles, one agent per entry.
	Roles []string `json:"roles"`
}

// DisbandConfig holds the disband scheduler timings.
type DisbandConfig struct {
	// DelayMS is the quiet period after all agents complete before the
	// disband is announced.
	DelayMS int `json:"delay_ms"`

	// GraceMS is the pause between the announcement and the teardown.
	GraceMS int `json:"grace_ms"`
}
