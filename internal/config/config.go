// Package config handles configuration loading and management for invested.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for invested.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Debate    DebateConfig    `mapstructure:"debate"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock switches to AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// TrackerConfig selects and targets the issue source.
type TrackerConfig struct {
	// Provider is the registered tracker key (file, memory).
	Provider string `mapstructure:"provider"`
	// Target is provider-specific: the items directory for file.
	Target string `mapstructure:"target"`
}

// KnowledgeConfig holds retrieval settings.
type KnowledgeConfig struct {
	// DocsDir is the directory the ingester watches and indexes.
	DocsDir string `mapstructure:"docs_dir"`
	// SearchLimit bounds snippets per run.
	SearchLimit int `mapstructure:"search_limit"`
}

// DebateConfig holds per-run debate settings.
type DebateConfig struct {
	// Agentic enables supervisor-routed runs.
	Agentic bool `mapstructure:"agentic"`
	// AllowSplit permits split proposals for unconverged runs.
	AllowSplit bool `mapstructure:"allow_split"`
	// Timeout is the per-run wall clock bound.
	Timeout time.Duration `mapstructure:"timeout"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.invested.yaml in current directory or parent)
// 3. User config (~/.config/invested/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("tracker.provider", cfg.Tracker.Provider)
	v.Set("tracker.target", cfg.Tracker.Target)
	v.Set("knowledge.docs_dir", cfg.Knowledge.DocsDir)
	v.Set("knowledge.search_limit", cfg.Knowledge.SearchLimit)
	v.Set("debate.agentic", cfg.Debate.Agentic)
	v.Set("debate.allow_split", cfg.Debate.AllowSplit)
	v.Set("debate.timeout", cfg.Debate.Timeout.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("tracker.provider", "file")
	v.SetDefault("tracker.target", "items")

	v.SetDefault("knowledge.docs_dir", "docs")
	v.SetDefault("knowledge.search_limit", 8)

	v.SetDefault("debate.agentic", false)
	v.SetDefault("debate.allow_split", false)
	v.SetDefault("debate.timeout", "10m")

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for invested.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "invested")
	}

	// Fall back to ~/.config/invested
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "invested")
	}
	return filepath.Join(home, ".config", "invested")
}

// findProjectConfig searches for .invested.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".invested.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Tracker: TrackerConfig{
			Provider: "file",
			Target:   "items",
		},
		Knowledge: KnowledgeConfig{
			DocsDir:     "docs",
			SearchLimit: 8,
		},
		Debate: DebateConfig{
			Timeout: 10 * time.Minute,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
