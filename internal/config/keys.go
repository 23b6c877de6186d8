package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/articlebench/internal/orchestrator"
)

// ErrNoAPIKey is returned when no API key is configured for the judge.
var ErrNoAPIKey = errors.New("no judge API key configured")

// Judge providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
	ProviderRemote    = "remote"
)

// GetAPIKey returns the API key for the configured judge provider.
// It checks in order: environment variable, config file. Bedrock and remote
// judges do not use an API key and always return "".
func GetAPIKey(cfg *Config) (string, error) {
	if cfg == nil {
		return "", ErrNoAPIKey
	}

	var envName, configured string
	switch cfg.Judge.Provider {
	case ProviderBedrock, ProviderRemote:
		return "", nil
	case ProviderGemini:
		envName, configured = "GEMINI_API_KEY", cfg.Judge.GeminiAPIKey
	default:
		envName, configured = "ANTHROPIC_API_KEY", cfg.Judge.APIKey
	}

	if key := os.Getenv(envName); key != "" {
		return key, nil
	}
	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}
	return "", ErrNoAPIKey
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// Validate checks that cfg describes a usable judge and orchestrator.
func Validate(cfg *Config) error {
	switch cfg.Judge.Provider {
	case ProviderAnthropic, ProviderBedrock, ProviderGemini:
	case ProviderRemote:
		if cfg.Judge.RemoteURL == "" {
			return errors.New("judge.remote_url is required for the remote provider")
		}
	default:
		return fmt.Errorf("unknown judge.provider %q", cfg.Judge.Provider)
	}

	if _, err := orchestrator.ParseTransport(cfg.Orchestrator.Transport); err != nil {
		return fmt.Errorf("orchestrator.transport: %w", err)
	}

	if cfg.Run.Concurrency < 0 {
		return fmt.Errorf("run.concurrency must be >= 0, got %d", cfg.Run.Concurrency)
	}
	return nil
}
