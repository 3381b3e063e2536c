// Package config loads and persists engine configuration. A missing file
// yields defaults; partial files override only the fields they set.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// OracleConfig selects and tunes the fix provider.
type OracleConfig struct {
	Provider    string  `json:"provider"` // "anthropic" or "openai"
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	// APIKeyEnv names the environment variable holding the key. Keys are
	// never stored in the config file itself.
	APIKeyEnv string `json:"api_key_env,omitempty"`
}

// Config represents engine configuration.
type Config struct {
	WorkingDir string `json:"working_dir"`
	// MaxCycles caps remediation cycles per session.
	MaxCycles int `json:"max_cycles"`
	// MaxAttempts caps oracle retries per task.
	MaxAttempts int `json:"max_attempts"`
	// CommandTimeout bounds one command run, in seconds.
	CommandTimeout int `json:"command_timeout_seconds"`
	// StallWindow is the silence window, in seconds, after which a
	// command showing an interactive prompt is killed.
	StallWindow int `json:"stall_window_seconds"`
	// SettingsCandidates are tried in order when resolving the project
	// settings file.
	SettingsCandidates []string     `json:"settings_candidates,omitempty"`
	Oracle             OracleConfig `json:"oracle"`
	LogLevel           string       `json:"log_level"` // debug, info, warn, error, none
	LogPath            string       `json:"-"`
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "fixpoint")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "fixpoint")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "fixpoint")
	}
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		WorkingDir:         ".",
		MaxCycles:          5,
		MaxAttempts:        3,
		CommandTimeout:     300,
		StallWindow:        20,
		SettingsCandidates: []string{"settings.py", "config/settings.py"},
		Oracle: OracleConfig{
			Provider:  "anthropic",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		LogLevel: "info",
		LogPath:  filepath.Join(defaultStateDir(), "fixpoint.log"),
	}
}

// Load loads configuration from path, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if config.WorkingDir == "" {
		config.WorkingDir = "."
	}
	if config.MaxCycles <= 0 {
		config.MaxCycles = 5
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 300
	}
	if config.StallWindow <= 0 {
		config.StallWindow = 20
	}
	if len(config.SettingsCandidates) == 0 {
		config.SettingsCandidates = []string{"settings.py", "config/settings.py"}
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "fixpoint.log")
	}
	applyEnvOverrides(config)
	return config, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// APIKey resolves the oracle API key from the configured environment
// variable, with the provider's conventional variable as fallback.
func (c *Config) APIKey() string {
	if c.Oracle.APIKeyEnv != "" {
		if key := strings.TrimSpace(os.Getenv(c.Oracle.APIKeyEnv)); key != "" {
			return key
		}
	}
	switch c.Oracle.Provider {
	case "openai":
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "fixpoint", "config.json")
}

func applyEnvOverrides(c *Config) {
	if provider := strings.TrimSpace(os.Getenv("FIXPOINT_PROVIDER")); provider != "" {
		c.Oracle.Provider = provider
	}
	if model := strings.TrimSpace(os.Getenv("FIXPOINT_MODEL")); model != "" {
		c.Oracle.Model = model
	}
	if level := strings.TrimSpace(os.Getenv("FIXPOINT_LOG_LEVEL")); level != "" {
		c.LogLevel = level
	}
}
