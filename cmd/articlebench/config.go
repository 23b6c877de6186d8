package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/articlebench/internal/config"
)

// configKeys lists every key the config command understands, in display order.
var configKeys = []string{
	"judge.provider",
	"judge.model",
	"judge.api_key",
	"judge.gemini_api_key",
	"judge.aws_region",
	"judge.aws_profile",
	"judge.remote_url",
	"judge.max_tokens",
	"orchestrator.url",
	"orchestrator.transport",
	"orchestrator.timeout",
	"run.concurrency",
	"run.output_dir",
	"run.inputs",
	"run.metrics",
	"run.row_timeout",
	"logging.level",
	"logging.file",
	"state.db_path",
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify articlebench configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/articlebench/config.yaml
Project-specific overrides can be placed in .articlebench.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			return setConfigKey(args[0], args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			displayAllConfig(cfg)
			return nil
		}
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("\n(project overrides from %s)\n", p)
	}
}

// setConfigKey updates the user config file only, so project overrides and
// environment values are never written back.
func setConfigKey(key, value string) error {
	path := config.GetUserConfigPath()
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "judge.provider":
		return cfg.Judge.Provider, nil
	case "judge.model":
		return cfg.Judge.Model, nil
	case "judge.api_key":
		return config.MaskAPIKey(cfg.Judge.APIKey), nil
	case "judge.gemini_api_key":
		return config.MaskAPIKey(cfg.Judge.GeminiAPIKey), nil
	case "judge.aws_region":
		return cfg.Judge.AWSRegion, nil
	case "judge.aws_profile":
		return cfg.Judge.AWSProfile, nil
	case "judge.remote_url":
		return cfg.Judge.RemoteURL, nil
	case "judge.max_tokens":
		return strconv.Itoa(cfg.Judge.MaxTokens), nil
	case "orchestrator.url":
		return cfg.Orchestrator.URL, nil
	case "orchestrator.transport":
		return cfg.Orchestrator.Transport, nil
	case "orchestrator.timeout":
		return cfg.Orchestrator.Timeout.String(), nil
	case "run.concurrency":
		return strconv.Itoa(cfg.Run.Concurrency), nil
	case "run.output_dir":
		return cfg.Run.OutputDir, nil
	case "run.inputs":
		return cfg.Run.Inputs, nil
	case "run.metrics":
		return strings.Join(cfg.Run.Metrics, ","), nil
	case "run.row_timeout":
		return cfg.Run.RowTimeout.String(), nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.file":
		return cfg.Logging.File, nil
	case "state.db_path":
		return cfg.State.DBPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "judge.provider":
		cfg.Judge.Provider = value
	case "judge.model":
		cfg.Judge.Model = value
	case "judge.api_key":
		cfg.Judge.APIKey = value
	case "judge.gemini_api_key":
		cfg.Judge.GeminiAPIKey = value
	case "judge.aws_region":
		cfg.Judge.AWSRegion = value
	case "judge.aws_profile":
		cfg.Judge.AWSProfile = value
	case "judge.remote_url":
		cfg.Judge.RemoteURL = value
	case "judge.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for judge.max_tokens: %w", err)
		}
		cfg.Judge.MaxTokens = n
	case "orchestrator.url":
		cfg.Orchestrator.URL = value
	case "orchestrator.transport":
		cfg.Orchestrator.Transport = value
	case "orchestrator.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for orchestrator.timeout: %w", err)
		}
		cfg.Orchestrator.Timeout = d
	case "run.concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for run.concurrency: %w", err)
		}
		cfg.Run.Concurrency = n
	case "run.output_dir":
		cfg.Run.OutputDir = value
	case "run.inputs":
		cfg.Run.Inputs = value
	case "run.metrics":
		var metrics []string
		for _, m := range strings.Split(value, ",") {
			if m = strings.TrimSpace(m); m != "" {
				metrics = append(metrics, m)
			}
		}
		cfg.Run.Metrics = metrics
	case "run.row_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for run.row_timeout: %w", err)
		}
		cfg.Run.RowTimeout = d
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.file":
		cfg.Logging.File = value
	case "state.db_path":
		cfg.State.DBPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
