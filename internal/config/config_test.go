package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg := Load()
	if cfg.HTTPPort != 8000 {
		t.Fatalf("expected port 8000, got %d", cfg.HTTPPort)
	}
	if cfg.GenerationTimeout != 120*time.Second {
		t.Fatalf("unexpected generation timeout: %v", cfg.GenerationTimeout)
	}
	if cfg.FailedHistoryLimit != 100 {
		t.Fatalf("unexpected failed history limit: %d", cfg.FailedHistoryLimit)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestKeyringBackendSelection(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{"KEYRING_BACKEND", "KEYRING_PASSWORD"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if cfg := Load(); cfg.KeyringBackend != "memory" {
		t.Fatalf("expected memory backend without a password, got %s", cfg.KeyringBackend)
	}

	t.Setenv("KEYRING_PASSWORD", "s3cret")
	if cfg := Load(); cfg.KeyringBackend != "file" {
		t.Fatalf("expected file backend with a password, got %s", cfg.KeyringBackend)
	}

	t.Setenv("KEYRING_PASSWORD", "")
	t.Setenv("KEYRING_BACKEND", "file")
	if cfg := Load(); cfg.KeyringBackend != "file" {
		t.Fatalf("explicit backend not kept, got %s", cfg.KeyringBackend)
	}
}

func TestLoadFromEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "HTTP_PORT=9100\nFAILED_HISTORY_LIMIT=5\nTPAGENT_MODE=MOCK\nPUBLIC_BASE_URL=http://plans.local/\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	// Process environment wins over the file.
	t.Setenv("HTTP_PORT", "9200")
	t.Setenv("GENERATION_TIMEOUT_MS", "1500")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	for _, key := range []string{"FAILED_HISTORY_LIMIT", "TPAGENT_MODE", "PUBLIC_BASE_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.HTTPPort != 9200 {
		t.Fatalf("expected env port 9200, got %d", cfg.HTTPPort)
	}
	if cfg.FailedHistoryLimit != 5 {
		t.Fatalf("expected limit from .env, got %d", cfg.FailedHistoryLimit)
	}
	if cfg.Mode != "MOCK" {
		t.Fatalf("expected MOCK mode, got %q", cfg.Mode)
	}
	if cfg.PublicBaseURL != "http://plans.local" {
		t.Fatalf("expected trimmed base URL, got %q", cfg.PublicBaseURL)
	}
	if cfg.GenerationTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected generation timeout: %v", cfg.GenerationTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("TPAGENT_TEST_INT", "abc")
	if got := getEnvInt("TPAGENT_TEST_INT", 7); got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}
}
