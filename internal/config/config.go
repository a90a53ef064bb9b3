// Package config loads and validates shellpilot configuration from YAML,
// with environment variable overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shellpilot/internal/types"
)

// Config holds all shellpilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM gateway configuration
	LLM LLMConfig `yaml:"llm"`

	// Agent loop configuration
	Agent AgentConfig `yaml:"agent"`

	// Completion detector configuration
	Detector DetectorConfig `yaml:"detector"`

	// Transcript persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the LLM gateway client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// AgentConfig configures the task orchestration loop.
type AgentConfig struct {
	AutoRun          bool   `yaml:"auto_run"`           // dispatch permitted commands without confirmation
	MaxAutoRisk      string `yaml:"max_auto_risk"`      // low, medium, high
	MaxHistoryLength int    `yaml:"max_history_length"` // user entries kept in the dialogue log
	MaxOutputLines   int    `yaml:"max_output_lines"`   // output lines kept per continuation turn
	MaxOutputLength  int    `yaml:"max_output_length"`  // chars kept per retained line
}

// DetectorConfig configures completion detection polling.
type DetectorConfig struct {
	PollInterval string `yaml:"poll_interval"` // e.g. "100ms"
	MaxPolls     int    `yaml:"max_polls"`     // ceiling before forcing progress
}

// StoreConfig configures transcript persistence.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category logger.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // master toggle - false = no logging
	Categories map[string]bool `yaml:"categories"` // per-category toggles
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "shellpilot",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Agent: AgentConfig{
			AutoRun:          false,
			MaxAutoRisk:      "low",
			MaxHistoryLength: 10,
			MaxOutputLines:   50,
			MaxOutputLength:  500,
		},

		Detector: DetectorConfig{
			PollInterval: "100ms",
			MaxPolls:     100,
		},

		Store: StoreConfig{
			Enabled:      false,
			DatabasePath: "data/shellpilot.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults;
// environment variables are applied on top in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API key in priority order; the provider follows the key that won.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if key := os.Getenv("SHELLPILOT_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if url := os.Getenv("SHELLPILOT_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("SHELLPILOT_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("SHELLPILOT_DB"); path != "" {
		c.Store.DatabasePath = path
		c.Store.Enabled = true
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Agent.MaxAutoRisk {
	case "low", "medium", "high", "":
	default:
		return fmt.Errorf("unknown max_auto_risk %q", c.Agent.MaxAutoRisk)
	}
	if c.Agent.MaxHistoryLength < 0 {
		return fmt.Errorf("max_history_length must be >= 0")
	}
	if c.Detector.MaxPolls < 0 {
		return fmt.Errorf("max_polls must be >= 0")
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	return nil
}

// MaxAutoRiskLevel returns the configured risk ceiling as a typed level.
func (c *Config) MaxAutoRiskLevel() types.RiskLevel {
	if c.Agent.MaxAutoRisk == "" {
		return types.RiskLow
	}
	return types.ParseRiskLevel(c.Agent.MaxAutoRisk)
}

// LLMTimeout parses the gateway timeout, defaulting to 120s.
func (c *Config) LLMTimeout() (time.Duration, error) {
	return parseDurationDefault(c.LLM.Timeout, 120*time.Second, "llm.timeout")
}

// PollInterval parses the detector poll interval, defaulting to 100ms.
func (c *Config) PollInterval() (time.Duration, error) {
	return parseDurationDefault(c.Detector.PollInterval, 100*time.Millisecond, "detector.poll_interval")
}

func parseDurationDefault(s string, def time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}

// DefaultPath returns the conventional config location under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".shellpilot", "config.yaml")
}
