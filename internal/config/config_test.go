package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Platforms) == 0 {
		t.Error("expected platforms to be populated")
	}
	if cfg.Level2.Model != "gemini-2.0-flash" {
		t.Errorf("expected model 'gemini-2.0-flash', got %q", cfg.Level2.Model)
	}
	if cfg.Documents.MaxFileSizeMB != 50 {
		t.Errorf("expected 50MB limit, got %d", cfg.Documents.MaxFileSizeMB)
	}
	if len(cfg.Documents.CompilableKeywords) == 0 {
		t.Error("expected default compilable keywords")
	}
	if p, ok := cfg.Platform("comune-albo"); !ok || p.IsEnabled() {
		t.Error("expected comune-albo to be present and disabled")
	}
	if p, _ := cfg.Platform("anac-feed"); !p.IsEnabled() {
		t.Error("expected anac-feed to be enabled by default")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
level2:
  provider: ollama
  model: qwen2.5:7b
scraper:
  workers: 4
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Level2.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Level2.Provider)
	}
	if cfg.Scraper.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Scraper.Workers)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Level2.MaxAttempts != 3 {
		t.Errorf("expected default max_attempts 3, got %d", cfg.Level2.MaxAttempts)
	}
	if cfg.DownloadTimeout() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.DownloadTimeout())
	}
	if cfg.SuccessDelay() != 4*time.Second {
		t.Errorf("expected 4s success delay, got %v", cfg.SuccessDelay())
	}
	if cfg.MaxFileSize() != 50*1024*1024 {
		t.Errorf("unexpected max file size %d", cfg.MaxFileSize())
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"driver":         "database:\n  driver: mysql\n",
		"unknown kind":   "platforms:\n  - name: x\n    kind: ftp\n",
		"duplicate name": "platforms:\n  - name: x\n    kind: feed\n  - name: x\n    kind: html\n",
		"missing name":   "platforms:\n  - kind: feed\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parse([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Platforms) == 0 {
		t.Error("expected platforms to be populated from file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TENDERWATCH_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TENDERWATCH_TEST_KEY", "")
	os.Unsetenv("TENDERWATCH_TEST_KEY")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("TENDERWATCH_TEST_KEY"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}
	if filepath.Base(cfg.DatabasePath()) != "tenders.db" {
		t.Errorf("unexpected default db path %q", cfg.DatabasePath())
	}

	cfg.Database.Path = "/custom/path/tenders.db"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DownloadPath() != "/custom/path/documents" {
		t.Errorf("unexpected download path %q", cfg.DownloadPath())
	}
}
