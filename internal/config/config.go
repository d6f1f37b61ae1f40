// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the planweave configuration.
type Config struct {
	Agent     AgentConfig        `toml:"agent"`
	LLM       LLMConfig          `toml:"llm"`       // Default LLM settings
	Profiles  map[string]Profile `toml:"profiles"`  // Named model profiles skills may request
	Skills    SkillsConfig       `toml:"skills"`    // Skill catalog directories
	Storage   StorageConfig      `toml:"storage"`   // Session log storage
	Telemetry TelemetryConfig    `toml:"telemetry"` // OTLP tracing
}

// AgentConfig contains identification and workspace settings.
type AgentConfig struct {
	ID        string `toml:"id"`
	Workspace string `toml:"workspace"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint
}

// Profile maps a profile name to a specific LLM configuration. A skill
// whose metadata names a profile gets its refinement routed there.
type Profile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"`
}

// SkillsConfig contains skill catalog configuration.
type SkillsConfig struct {
	Paths []string `toml:"paths"` // Directories to search for skills
	Watch bool     `toml:"watch"` // Reload the catalog on file changes
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path         string `toml:"path"`          // Base directory for persistent data
	LogSessions  bool   `toml:"log_sessions"`  // Write JSONL session logs
	SessionsPath string `toml:"sessions_path"` // Override for the sessions directory
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"` // OTLP endpoint (e.g. localhost:4317)
	Protocol string            `toml:"protocol"` // grpc (default) or http
	Insecure bool              `toml:"insecure"`
	Headers  map[string]string `toml:"headers"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Storage: StorageConfig{
			Path:        "~/.local/planweave",
			LogSessions: true,
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SessionsDir returns the directory session logs are written to, or
// empty when session logging is disabled.
func (c *Config) SessionsDir() string {
	if !c.Storage.LogSessions {
		return ""
	}
	if c.Storage.SessionsPath != "" {
		return c.Storage.SessionsPath
	}
	return filepath.Join(expandHome(c.Storage.Path), "sessions")
}

// GetAPIKey returns the API key from the configured environment
// variable, falling back to the provider's conventional variable.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a
// provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// GetProfile returns the LLM config for a named profile, falling back
// to the default LLM config with per-field defaults filled in.
func (c *Config) GetProfile(name string) LLMConfig {
	if name == "" {
		return c.LLM
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return c.LLM
	}
	result := LLMConfig{
		Provider:  profile.Provider,
		Model:     profile.Model,
		APIKeyEnv: profile.APIKeyEnv,
		MaxTokens: profile.MaxTokens,
		BaseURL:   profile.BaseURL,
	}
	if result.Provider == "" {
		result.Provider = c.LLM.Provider
	}
	if result.APIKeyEnv == "" {
		result.APIKeyEnv = c.LLM.APIKeyEnv
	}
	if result.MaxTokens == 0 {
		result.MaxTokens = c.LLM.MaxTokens
	}
	return result
}

// HasProfile reports whether name resolves to a configured profile.
func (c *Config) HasProfile(name string) bool {
	_, ok := c.Profiles[name]
	return ok
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
