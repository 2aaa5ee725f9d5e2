package config

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	return &Config{
		CLI: CLIConfig{
			Command: "claude",
		},
		Team: TeamConfig{
			Roles: []string{"coder", "reviewer", "tester"},
		},
		Disband: DisbandConfig{
			DelayMS: 5000,
			GraceMS: 1200,
		},
	}
}
