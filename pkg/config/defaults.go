package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/tunecache/pkg/librarycache"
	"github.com/marmos91/tunecache/pkg/platform"
)

// ApplyDefaults fills zero values with defaults. Explicit values are kept.
//
// Defaults are written for every backend section, not only the selected one,
// so a generated config file documents all of them.
func ApplyDefaults(cfg *Config) {
	dataDir := platform.DefaultDataDir()

	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage, dataDir)
	applyFetchDefaults(&cfg.Fetch)
	applyLibraryCacheDefaults(&cfg.LibraryCache, dataDir)
	applyMetricsDefaults(&cfg.Metrics)
	applyGCDefaults(&cfg.GC)
	applyServerDefaults(&cfg.Server)
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyStorageDefaults(cfg *StorageConfig, dataDir string) {
	if cfg.Type == "" {
		cfg.Type = string(platform.Auto)
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}

	setDefault(cfg.Badger, "path", filepath.Join(dataDir, "badger"))
	setDefault(cfg.Badger, "block_cache_size_mb", 64)
	setDefault(cfg.Badger, "index_cache_size_mb", 32)
	setDefault(cfg.Filesystem, "path", filepath.Join(dataDir, "files"))
}

func applyFetchDefaults(cfg *FetchConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "tunecache/1.0"
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 4
	}

	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	setDefault(cfg.S3, "enabled", false)
	setDefault(cfg.S3, "region", "us-east-1")
	setDefault(cfg.S3, "max_retries", 5)
}

func applyLibraryCacheDefaults(cfg *LibraryCacheConfig, dataDir string) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(dataDir, "library.db")
	}
	if cfg.Version == "" {
		cfg.Version = librarycache.DefaultVersion
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8765"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// GetDefaultConfig returns a Config with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		LibraryCache: LibraryCacheConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
