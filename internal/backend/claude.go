package backend

// buildArgs constructs the command-line arguments for the agent CLI.
// A fresh start pins the session with --session-id so the supervisor
// knows the resume target even before the init event arrives; a resume
// uses --resume against the prior session.
func buildArgs(cfg Config, prompt, sessionID, resumeSessionID string) []string {
	args := []string{"-p", prompt, "--output-format", "stream-json", "--verbose"}

	if resumeSessionID != "" {
		args = append(args, "--resume", resumeSessionID)
	} else {
		args = append(args, "--session-id", sessionID)
	}

	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if cfg.PermissionMode != "" {
		args = append(args, "--permission-mode", cfg.PermissionMode)
	}

	return append(args, cfg.Args...)
}
