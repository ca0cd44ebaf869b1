package config

import (
	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/download"
	"github.com/marmos91/tunecache/pkg/metrics"
	"github.com/marmos91/tunecache/pkg/store"
)

// MetricsResult contains the metrics components created from configuration.
type MetricsResult struct {
	// Server exposes /metrics (nil if disabled).
	Server *metrics.Server

	// Download is the orchestrator sink (nil if disabled, which keeps the no-op).
	Download download.Metrics
}

// InitializeMetrics initializes the registry, the metrics server, the
// download metrics and the store collector for backend when metrics are
// enabled. When disabled every component is nil.
func InitializeMetrics(cfg *Config, backend store.Backend) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	if backend != nil {
		if err := metrics.RegisterStoreCollector(backend); err != nil {
			logger.Warn("Store metrics unavailable: %v", err)
		}
	}

	return &MetricsResult{
		Server:   metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		Download: metrics.NewDownloadMetrics(),
	}
}
