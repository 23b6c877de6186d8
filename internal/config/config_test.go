package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Judge.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.Judge.Provider)
	}

	if cfg.Judge.MaxTokens != 1024 {
		t.Errorf("expected default max_tokens 1024, got %d", cfg.Judge.MaxTokens)
	}

	if cfg.Orchestrator.Transport != "http" {
		t.Errorf("expected transport 'http', got %q", cfg.Orchestrator.Transport)
	}

	if cfg.Orchestrator.Timeout != 10*time.Minute {
		t.Errorf("expected orchestrator timeout 10m, got %v", cfg.Orchestrator.Timeout)
	}

	if cfg.Run.Inputs != "eval_inputs.jsonl" {
		t.Errorf("expected inputs eval_inputs.jsonl, got %q", cfg.Run.Inputs)
	}

	if len(cfg.Run.Metrics) != 4 {
		t.Errorf("expected 4 default metrics, got %v", cfg.Run.Metrics)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
judge:
  provider: gemini
  model: gemini-2.5-flash
  gemini_api_key: test-key
orchestrator:
  url: http://writer:9000/api/article
  transport: websocket
  timeout: 2m
run:
  concurrency: 3
  output_dir: out
  metrics: [relevance, fluency]
  row_timeout: 90s
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Judge.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", cfg.Judge.Provider)
	}

	if cfg.Judge.GeminiAPIKey != "test-key" {
		t.Errorf("expected gemini_api_key 'test-key', got %q", cfg.Judge.GeminiAPIKey)
	}

	// Unset keys keep their defaults.
	if cfg.Judge.MaxTokens != 1024 {
		t.Errorf("expected max_tokens default 1024, got %d", cfg.Judge.MaxTokens)
	}

	if cfg.Orchestrator.Transport != "websocket" {
		t.Errorf("expected transport 'websocket', got %q", cfg.Orchestrator.Transport)
	}

	if cfg.Orchestrator.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", cfg.Orchestrator.Timeout)
	}

	if cfg.Run.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Run.Concurrency)
	}

	if cfg.Run.RowTimeout != 90*time.Second {
		t.Errorf("expected row timeout 90s, got %v", cfg.Run.RowTimeout)
	}

	if len(cfg.Run.Metrics) != 2 || cfg.Run.Metrics[0] != "relevance" {
		t.Errorf("expected metrics [relevance fluency], got %v", cfg.Run.Metrics)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_WRITER_HOST", "writer.internal")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
orchestrator:
  url: http://${TEST_WRITER_HOST}/api/article
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Orchestrator.URL != "http://writer.internal/api/article" {
		t.Errorf("expected expanded url, got %q", cfg.Orchestrator.URL)
	}
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Setenv("ARTICLEBENCH_ORCHESTRATOR_URL", "http://from-env/api/article")

	configPath := filepath.Join(t.TempDir(), "bench.yaml")
	content := `
orchestrator:
  url: http://from-file/api/article
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Orchestrator.URL != "http://from-env/api/article" {
		t.Errorf("expected env to win, got %q", cfg.Orchestrator.URL)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Judge.Model = "claude-haiku-4-5-20251001"
	cfg.Run.Concurrency = 8
	cfg.Run.RowTimeout = 3 * time.Minute

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Judge.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %q", loaded.Judge.Model)
	}
	if loaded.Run.Concurrency != 8 {
		t.Errorf("concurrency = %d", loaded.Run.Concurrency)
	}
	if loaded.Run.RowTimeout != 3*time.Minute {
		t.Errorf("row_timeout = %v", loaded.Run.RowTimeout)
	}
}

func TestGetUserConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := getUserConfigDir(); got != filepath.Join("/tmp/xdg", "articlebench") {
		t.Errorf("getUserConfigDir() = %q", got)
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ProjectConfigName), []byte("run:\n  concurrency: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	orig, _ := os.Getwd()
	defer os.Chdir(orig)
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}

	got := findProjectConfig()
	want, _ := filepath.EvalSymlinks(filepath.Join(root, ProjectConfigName))
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("findProjectConfig() = %q, want %q", got, want)
	}
}
