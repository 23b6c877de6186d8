// Package config handles configuration loading and management for articlebench.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ProjectConfigName is the per-project override file searched upwards from cwd.
const ProjectConfigName = ".articlebench.yaml"

// DefaultMetrics are the judge metrics scored when none are configured.
var DefaultMetrics = []string{"relevance", "fluency", "coherence", "groundedness"}

// Config holds all configuration for articlebench.
type Config struct {
	Judge        JudgeConfig        `mapstructure:"judge"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Run          RunConfig          `mapstructure:"run"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	State        StateConfig        `mapstructure:"state"`
}

// JudgeConfig selects and configures the LLM judge.
type JudgeConfig struct {
	// Provider is anthropic, bedrock, gemini or remote.
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"api_key"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	AWSRegion    string `mapstructure:"aws_region"`
	AWSProfile   string `mapstructure:"aws_profile"`
	// RemoteURL is the evaluation service endpoint for the remote provider.
	RemoteURL string `mapstructure:"remote_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// OrchestratorConfig points at the external article-writing pipeline.
type OrchestratorConfig struct {
	URL string `mapstructure:"url"`
	// Transport is http (NDJSON stream) or websocket (alias ws).
	Transport string        `mapstructure:"transport"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RunConfig holds evaluation run settings.
type RunConfig struct {
	// Concurrency bounds parallel rows. Zero picks min(32, NumCPU+4).
	Concurrency int           `mapstructure:"concurrency"`
	OutputDir   string        `mapstructure:"output_dir"`
	Inputs      string        `mapstructure:"inputs"`
	Metrics     []string      `mapstructure:"metrics"`
	RowTimeout  time.Duration `mapstructure:"row_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GEMINI_API_KEY, ARTICLEBENCH_*)
// 2. Project config (.articlebench.yaml in current directory or parent)
// 3. User config (~/.config/articlebench/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		if err := mergeFile(v, projectConfig); err != nil {
			return nil, err
		}
	}

	return finish(v)
}

// LoadFile loads the defaults plus a single explicit config file, still
// honouring environment overrides. Used for the --config flag.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := mergeFile(v, path); err != nil {
		return nil, err
	}
	return finish(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
// Environment variables are not consulted.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func mergeFile(v *viper.Viper, path string) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.MergeConfigMap(fv.AllSettings()); err != nil {
		return fmt.Errorf("merging config %s: %w", path, err)
	}
	return nil
}

func finish(v *viper.Viper) (*Config, error) {
	v.BindEnv("judge.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("judge.gemini_api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	v.BindEnv("judge.aws_region", "AWS_REGION")
	v.BindEnv("judge.provider", "ARTICLEBENCH_JUDGE_PROVIDER")
	v.BindEnv("judge.model", "ARTICLEBENCH_JUDGE_MODEL")
	v.BindEnv("orchestrator.url", "ARTICLEBENCH_ORCHESTRATOR_URL")
	v.BindEnv("run.concurrency", "ARTICLEBENCH_CONCURRENCY")
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Judge.APIKey = expandEnv(cfg.Judge.APIKey)
	cfg.Judge.GeminiAPIKey = expandEnv(cfg.Judge.GeminiAPIKey)
	cfg.Orchestrator.URL = expandEnv(cfg.Orchestrator.URL)
	cfg.Judge.RemoteURL = expandEnv(cfg.Judge.RemoteURL)

	if len(cfg.Run.Metrics) == 0 {
		cfg.Run.Metrics = append([]string(nil), DefaultMetrics...)
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes cfg to the given path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("judge.provider", cfg.Judge.Provider)
	v.Set("judge.model", cfg.Judge.Model)
	v.Set("judge.api_key", cfg.Judge.APIKey)
	v.Set("judge.gemini_api_key", cfg.Judge.GeminiAPIKey)
	v.Set("judge.aws_region", cfg.Judge.AWSRegion)
	v.Set("judge.aws_profile", cfg.Judge.AWSProfile)
	v.Set("judge.remote_url", cfg.Judge.RemoteURL)
	v.Set("judge.max_tokens", cfg.Judge.MaxTokens)
	v.Set("orchestrator.url", cfg.Orchestrator.URL)
	v.Set("orchestrator.transport", cfg.Orchestrator.Transport)
	v.Set("orchestrator.timeout", cfg.Orchestrator.Timeout.String())
	v.Set("run.concurrency", cfg.Run.Concurrency)
	v.Set("run.output_dir", cfg.Run.OutputDir)
	v.Set("run.inputs", cfg.Run.Inputs)
	v.Set("run.metrics", cfg.Run.Metrics)
	v.Set("run.row_timeout", cfg.Run.RowTimeout.String())
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("state.db_path", cfg.State.DBPath)

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
	v.SetDefault("judge.provider", "anthropic")
	v.SetDefault("judge.model", "claude-sonnet-4-20250514")
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.gemini_api_key", "")
	v.SetDefault("judge.aws_region", "")
	v.SetDefault("judge.aws_profile", "")
	v.SetDefault("judge.remote_url", "")
	v.SetDefault("judge.max_tokens", 1024)

	v.SetDefault("orchestrator.url", "http://localhost:8000/api/article")
	v.SetDefault("orchestrator.transport", "http")
	v.SetDefault("orchestrator.timeout", "10m")

	v.SetDefault("run.concurrency", 0)
	v.SetDefault("run.output_dir", ".")
	v.SetDefault("run.inputs", "eval_inputs.jsonl")
	v.SetDefault("run.metrics", DefaultMetrics)
	v.SetDefault("run.row_timeout", "15m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("state.db_path", "")
}

// getUserConfigDir returns the XDG config directory for articlebench.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "articlebench")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "articlebench")
	}
	return filepath.Join(home, ".config", "articlebench")
}

// findProjectConfig searches for .articlebench.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
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

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Judge: JudgeConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Orchestrator: OrchestratorConfig{
			URL:       "http://localhost:8000/api/article",
			Transport: "http",
			Timeout:   10 * time.Minute,
		},
		Run: RunConfig{
			OutputDir:  ".",
			Inputs:     "eval_inputs.jsonl",
			Metrics:    append([]string(nil), DefaultMetrics...),
			RowTimeout: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
