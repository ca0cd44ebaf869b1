package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete tunecache configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags
//  2. Environment variables (TUNECACHE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values
//
// Backend-specific sections (storage.badger, storage.filesystem, fetch.s3)
// are kept as raw maps and decoded by the factory of the selected backend,
// so adding a backend never changes this struct.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Fetch        FetchConfig        `mapstructure:"fetch" yaml:"fetch"`
	LibraryCache LibraryCacheConfig `mapstructure:"library_cache" yaml:"library_cache"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	GC           GCConfig           `mapstructure:"gc" yaml:"gc"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Type is auto, badger, filesystem or memory. auto picks filesystem on
	// mobile runtimes and badger elsewhere.
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=auto badger filesystem memory"`

	// Badger is used when the resolved type is badger.
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// Filesystem is used when the resolved type is filesystem.
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`
}

// FetchConfig configures access to the remote content provider.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`

	// MaxBytes rejects larger assets. 0 means unlimited.
	MaxBytes int64 `mapstructure:"max_bytes" yaml:"max_bytes" validate:"gte=0"`

	// RateLimit throttles requests to the provider.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// S3 enables s3:// asset URLs when s3.enabled is true.
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// RateLimitConfig is a token bucket. A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// LibraryCacheConfig configures the offline library snapshot.
type LibraryCacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" validate:"required_if=Enabled true"`
	Version string `mapstructure:"version" yaml:"version" validate:"required"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// GCConfig configures the background sweep of orphaned album covers run by
// `tunecache serve`.
type GCConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`
	DryRun   bool          `mapstructure:"dry_run" yaml:"dry_run"`
}

// ServerConfig configures `tunecache serve`, which exposes minted playback
// references over HTTP.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" yaml:"listen" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// envKeys are bound explicitly so environment overrides apply even when the
// key is absent from the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"storage.type",
	"fetch.timeout",
	"fetch.user_agent",
	"fetch.max_bytes",
	"fetch.rate_limit.requests_per_second",
	"fetch.rate_limit.burst",
	"library_cache.enabled",
	"library_cache.path",
	"metrics.enabled",
	"metrics.port",
	"gc.enabled",
	"gc.interval",
	"gc.dry_run",
	"server.listen",
	"server.shutdown_timeout",
}

// Load loads configuration from file, environment and defaults, then
// validates it. An empty configPath searches the default location; a missing
// file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and config file lookup.
// Example: TUNECACHE_STORAGE_TYPE=filesystem
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("TUNECACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	// $XDG_CONFIG_HOME/tunecache/config.{yaml,toml}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/tunecache, else ~/.config/tunecache,
// else the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tunecache")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tunecache")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
