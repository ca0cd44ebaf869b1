package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "sqlite" },
			wantErr: "Type",
		},
		{
			name: "badger without path",
			mutate: func(c *Config) {
				c.Storage.Type = "badger"
				c.Storage.Badger = map[string]any{}
			},
			wantErr: "storage.badger.path",
		},
		{
			name: "in-memory badger is rejected",
			mutate: func(c *Config) {
				c.Storage.Type = "badger"
				c.Storage.Badger = map[string]any{"in_memory": true}
			},
			wantErr: "storage.badger.in_memory",
		},
		{
			name: "filesystem without path",
			mutate: func(c *Config) {
				c.Storage.Type = "filesystem"
				c.Storage.Filesystem = map[string]any{"path": ""}
			},
			wantErr: "storage.filesystem.path",
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *Config) { c.Fetch.Timeout = 0 },
			wantErr: "Timeout",
		},
		{
			name:    "negative max bytes",
			mutate:  func(c *Config) { c.Fetch.MaxBytes = -1 },
			wantErr: "MaxBytes",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "Port",
		},
		{
			name: "metrics enabled without port",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 0
			},
			wantErr: "metrics.port",
		},
		{
			name: "library cache enabled without path",
			mutate: func(c *Config) {
				c.LibraryCache.Enabled = true
				c.LibraryCache.Path = ""
			},
			wantErr: "Path",
		},
		{
			name:    "missing listen address",
			mutate:  func(c *Config) { c.Server.Listen = "" },
			wantErr: "Listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
