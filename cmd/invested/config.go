package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/invested/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify invested configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/invested/config.yaml
Project-specific overrides can be placed in .invested.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key:      %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model:        %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
	fmt.Printf("anthropic.use_bedrock:  %v\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("tracker.provider:       %s\n", cfg.Tracker.Provider)
	fmt.Printf("tracker.target:         %s\n", cfg.Tracker.Target)
	fmt.Printf("knowledge.docs_dir:     %s\n", cfg.Knowledge.DocsDir)
	fmt.Printf("knowledge.search_limit: %d\n", cfg.Knowledge.SearchLimit)
	fmt.Printf("debate.agentic:         %v\n", cfg.Debate.Agentic)
	fmt.Printf("debate.allow_split:     %v\n", cfg.Debate.AllowSplit)
	fmt.Printf("debate.timeout:         %s\n", cfg.Debate.Timeout)
	fmt.Printf("tui.refresh_rate:       %s\n", cfg.TUI.RefreshRate)

	fmt.Printf("\nUser config:    %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	switch key {
	case "anthropic.model":
		fmt.Println(cfg.Anthropic.Model)
	case "anthropic.use_bedrock":
		fmt.Println(cfg.Anthropic.UseBedrock)
	case "tracker.provider":
		fmt.Println(cfg.Tracker.Provider)
	case "tracker.target":
		fmt.Println(cfg.Tracker.Target)
	case "knowledge.docs_dir":
		fmt.Println(cfg.Knowledge.DocsDir)
	case "knowledge.search_limit":
		fmt.Println(cfg.Knowledge.SearchLimit)
	case "debate.agentic":
		fmt.Println(cfg.Debate.Agentic)
	case "debate.allow_split":
		fmt.Println(cfg.Debate.AllowSplit)
	case "debate.timeout":
		fmt.Println(cfg.Debate.Timeout)
	case "tui.refresh_rate":
		fmt.Println(cfg.TUI.RefreshRate)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
}

// setConfigKey updates a configuration value and saves the user config.
func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = strconv.ParseBool(value)
	case "tracker.provider":
		cfg.Tracker.Provider = value
	case "tracker.target":
		cfg.Tracker.Target = value
	case "knowledge.docs_dir":
		cfg.Knowledge.DocsDir = value
	case "knowledge.search_limit":
		cfg.Knowledge.SearchLimit, err = strconv.Atoi(value)
	case "debate.agentic":
		cfg.Debate.Agentic, err = strconv.ParseBool(value)
	case "debate.allow_split":
		cfg.Debate.AllowSplit, err = strconv.ParseBool(value)
	case "debate.timeout":
		cfg.Debate.Timeout, err = time.ParseDuration(value)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
