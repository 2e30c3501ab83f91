// Package config handles configuration loading and validation for enso.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/enso/internal/core/agent"
	"github.com/hay-kot/enso/internal/core/shell"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	GitPath   string       `yaml:"git_path"`
	Shell     shell.Config `yaml:"shell"`
	Agents    Agents       `yaml:"agents"`
	Detect    Detect       `yaml:"detect"`
	Terminal  Terminal     `yaml:"terminal"`
	Workspace Workspace    `yaml:"workspace"`
	DataDir   string       `yaml:"-"` // set by caller, not from config file
}

// Agents configures agent detection inputs.
type Agents struct {
	// Paths overrides the command of a builtin agent, keyed by agent id.
	Paths  map[string]string   `yaml:"paths"`
	Custom []agent.CustomAgent `yaml:"custom"`
}

// Detect tunes the agent detector.
type Detect struct {
	// Timeout of the version probe. Zero picks the platform default.
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// Concurrency limits parallel probes. Zero means unbounded.
	Concurrency int `yaml:"concurrency"`
}

// Terminal configures interactive terminal sessions.
type Terminal struct {
	GracePeriod time.Duration `yaml:"grace_period"`
	Cols        uint16        `yaml:"cols"`
	Rows        uint16        `yaml:"rows"`
}

// Workspace configures temporary workspaces.
type Workspace struct {
	// BaseDir holds new workspaces. "~" is expanded.
	BaseDir     string        `yaml:"base_dir"`
	RemoveDelay time.Duration `yaml:"remove_delay"`
	// Setup commands run in each new workspace. They are templates with
	// {{ .Path }} and {{ .Name }}.
	Setup []string `yaml:"setup"`
	// Copy lists glob patterns (doublestar syntax) of files copied into a
	// workspace created from a source directory.
	Copy []string `yaml:"copy"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitPath: "git",
		Shell:   shell.Config{Kind: shell.KindSystem},
		Agents:  Agents{Paths: map[string]string{}},
		Detect: Detect{
			ProbeTimeout: 10 * time.Second,
		},
		Terminal: Terminal{
			GracePeriod: 3 * time.Second,
			Cols:        80,
			Rows:        24,
		},
		Workspace: Workspace{
			RemoveDelay: 500 * time.Millisecond,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.GitPath == "" {
		c.GitPath = defaults.GitPath
	}
	if c.Shell.Kind == "" {
		c.Shell.Kind = defaults.Shell.Kind
	}
	if c.Agents.Paths == nil {
		c.Agents.Paths = map[string]string{}
	}
	if c.Detect.ProbeTimeout == 0 {
		c.Detect.ProbeTimeout = defaults.Detect.ProbeTimeout
	}
	if c.Terminal.GracePeriod == 0 {
		c.Terminal.GracePeriod = defaults.Terminal.GracePeriod
	}
	if c.Terminal.Cols == 0 {
		c.Terminal.Cols = defaults.Terminal.Cols
	}
	if c.Terminal.Rows == 0 {
		c.Terminal.Rows = defaults.Terminal.Rows
	}
	if c.Workspace.RemoveDelay == 0 {
		c.Workspace.RemoveDelay = defaults.Workspace.RemoveDelay
	}
}

// WorkspacesFile returns the path to the temporary workspaces JSON file.
func (c *Config) WorkspacesFile() string {
	return filepath.Join(c.DataDir, "workspaces.json")
}

// DetectLogFile returns the path of the agent detection diagnostic log.
func (c *Config) DetectLogFile() string {
	return filepath.Join(c.DataDir, "logs", "cli-detect.log")
}
