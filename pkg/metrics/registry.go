// Package metrics provides Prometheus metrics for tunecache.
//
// Metrics are optional. Until InitRegistry is called the constructors return
// nil and callers keep their no-op sinks.
//
// Usage:
//
//	metrics.InitRegistry()
//	orch := download.New(cat, fetcher, download.WithMetrics(metrics.NewDownloadMetrics()))
//	metrics.RegisterStoreCollector(backend)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tunecache"

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Later calls are ignored.
//
// Go runtime and process collectors are registered alongside tunecache's own
// metrics.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry was called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
