package metrics

import (
	"context"
	"time"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// storeCollector exports backend statistics at scrape time.
type storeCollector struct {
	backend store.Backend
	timeout time.Duration

	records *prometheus.Desc
	bytes   *prometheus.Desc
	up      *prometheus.Desc
}

// RegisterStoreCollector exports per-collection record counts and payload
// sizes of backend. It is a no-op when metrics are disabled.
func RegisterStoreCollector(backend store.Backend) error {
	if !IsEnabled() {
		return nil
	}
	return GetRegistry().Register(newStoreCollector(backend))
}

func newStoreCollector(backend store.Backend) *storeCollector {
	return &storeCollector{
		backend: backend,
		timeout: 5 * time.Second,
		records: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "records"),
			"Records per collection",
			[]string{"collection"}, nil,
		),
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "payload_bytes"),
			"Payload bytes per collection",
			[]string{"collection"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "up"),
			"Whether the storage backend answered the last scrape",
			nil, nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.bytes
	ch <- c.up
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.backend.Stats(ctx)
	if err != nil {
		logger.Warn("Store stats unavailable for metrics: %v", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for _, collection := range store.Collections {
		cs := stats.Collections[collection]
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(cs.Records), string(collection))
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(cs.PayloadBytes), string(collection))
	}
}
