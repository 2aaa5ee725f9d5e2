package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadDefault loads configuration from the standard locations: defaults,
// overlaid with ~/.taskforce/config.json, overlaid with ./.taskforce/config.json.
// Missing files are skipped.
func LoadDefault() (*Config, error) {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".taskforce", "config.json"))
	}
	paths = append(paths, filepath.Join(".taskforce", "config.json"))
	return Load(paths...)
}

// Load returns the defaults merged with each config file in order. Later
// files override earlier ones. A path that does not exist is skipped.
func Load(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if err := mergeConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overlay Config
	if err := json.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if overlay.CLI.Command != "" {
		cfg.CLI.Command = overlay.CLI.Command
	}
	if overlay.CLI.Args != nil {
		cfg.CLI.Args = overlay.CLI.Args
	}
	if overlay.CLI.Model != "" {
		cfg.CLI.Model = overlay.CLI.Model
	}
	if overlay.CLI.PermissionMode != "" {
		cfg.CLI.PermissionMode = overlay.CLI.PermissionMode
	}
	if overlay.Team.Roles != nil {
		cfg.Team.Roles = overlay.Team.Roles
	}
	if overlay.Disband.DelayMS != 0 {
		cfg.Disband.DelayMS = overlay.Disband.DelayMS
	}
	if overlay.Disband.GraceMS != 0 {
		cfg.Disband.GraceMS = overlay.Disband.GraceMS
	}
	if overlay.WorkDir != "" {
		cfg.WorkDir = overlay.WorkDir
	}
	if overlay.StorePath != "" {
		cfg.StorePath = overlay.StorePath
	}
	return nil
}

func (c *Config) validate() error {
	if c.CLI.Command == "" {
		return fmt.Errorf("cli.command must not be empty")
	}
	if c.Disband.DelayMS < 0 {
		return fmt.Errorf("disband.delay_ms must not be negative")
	}
	if c.Disband.GraceMS < 0 {
		return fmt.Errorf("disband.grace_ms must not be negative")
	}
	return nil
}
