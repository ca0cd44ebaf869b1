package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "debug"

storage:
  type: "filesystem"
  filesystem:
    path: "/tmp/tunecache-test"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Storage.Filesystem["path"] != "/tmp/tunecache-test" {
		t.Errorf("Expected explicit filesystem path, got %v", cfg.Storage.Filesystem["path"])
	}
	if cfg.Fetch.Timeout != 5*time.Minute {
		t.Errorf("Expected default fetch timeout 5m, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown_timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "auto" {
		t.Errorf("Expected default storage type 'auto', got %q", cfg.Storage.Type)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[fetch]
timeout = "30s"
user_agent = "test-agent"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected json format, got %q", cfg.Logging.Format)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.UserAgent != "test-agent" {
		t.Errorf("Expected user agent 'test-agent', got %q", cfg.Fetch.UserAgent)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("TUNECACHE_STORAGE_TYPE", "memory")
	t.Setenv("TUNECACHE_METRICS_PORT", "9100")

	configPath := writeConfig(t, "config.yaml", `
storage:
  type: badger
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected env override 'memory', got %q", cfg.Storage.Type)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Expected env override port 9100, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidStorageType(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
storage:
  type: indexeddb
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown storage type")
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "tunecache") {
		t.Errorf("Expected %s, got %s", filepath.Join(dir, "tunecache"), got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(dir, "tunecache", "config.yaml") {
		t.Errorf("Unexpected default config path %s", got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}
