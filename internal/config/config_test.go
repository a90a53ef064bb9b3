package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shellpilot/internal/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "SHELLPILOT_API_KEY",
		"SHELLPILOT_BASE_URL", "SHELLPILOT_MODEL", "SHELLPILOT_DB",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Agent.AutoRun {
		t.Error("auto_run must default off")
	}
	if cfg.Agent.MaxAutoRisk != "low" {
		t.Errorf("max_auto_risk = %q, want low", cfg.Agent.MaxAutoRisk)
	}
	if cfg.Agent.MaxHistoryLength != 10 || cfg.Agent.MaxOutputLines != 50 || cfg.Agent.MaxOutputLength != 500 {
		t.Errorf("unexpected agent limits: %+v", cfg.Agent)
	}
	if cfg.Detector.MaxPolls != 100 {
		t.Errorf("max_polls = %d", cfg.Detector.MaxPolls)
	}
	if cfg.Store.Enabled {
		t.Error("store must default off")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("model = %q, want default", cfg.LLM.Model)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
llm:
  provider: gemini
  model: gemini-2.0-flash
  timeout: 30s
agent:
  auto_run: true
  max_auto_risk: medium
  max_history_length: 5
detector:
  poll_interval: 50ms
  max_polls: 40
store:
  enabled: true
  database_path: /tmp/sp.db
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if !cfg.Agent.AutoRun || cfg.Agent.MaxAutoRisk != "medium" || cfg.Agent.MaxHistoryLength != 5 {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if !cfg.Store.Enabled || cfg.Store.DatabasePath != "/tmp/sp.db" {
		t.Errorf("store = %+v", cfg.Store)
	}

	if d, err := cfg.LLMTimeout(); err != nil || d != 30*time.Second {
		t.Errorf("timeout = %v, %v", d, err)
	}
	if d, err := cfg.PollInterval(); err != nil || d != 50*time.Millisecond {
		t.Errorf("poll interval = %v, %v", d, err)
	}
	if got := cfg.MaxAutoRiskLevel(); got != types.RiskMedium {
		t.Errorf("risk level = %v", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SHELLPILOT_MODEL", "gpt-4o-mini")
	t.Setenv("SHELLPILOT_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("SHELLPILOT_DB", "/tmp/override.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("base url = %q", cfg.LLM.BaseURL)
	}
	if !cfg.Store.Enabled || cfg.Store.DatabasePath != "/tmp/override.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
}

func TestLoad_GeminiKeySwitchesProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.APIKey != "g-test" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"bad risk", func(c *Config) { c.Agent.MaxAutoRisk = "extreme" }},
		{"negative history", func(c *Config) { c.Agent.MaxHistoryLength = -1 }},
		{"negative polls", func(c *Config) { c.Detector.MaxPolls = -1 }},
		{"bad timeout", func(c *Config) { c.LLM.Timeout = "soon" }},
		{"zero interval", func(c *Config) { c.Detector.PollInterval = "0s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Agent.AutoRun = true
	cfg.Agent.MaxAutoRisk = "medium"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Agent.AutoRun || got.Agent.MaxAutoRisk != "medium" {
		t.Errorf("round trip lost agent settings: %+v", got.Agent)
	}
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath("/work")
	want := filepath.Join("/work", ".shellpilot", "config.yaml")
	if got != want {
		t.Errorf("DefaultPath = %q, want %q", got, want)
	}
}
