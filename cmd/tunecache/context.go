package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/config"
	"github.com/marmos91/tunecache/pkg/download"
	"github.com/marmos91/tunecache/pkg/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration once and applies its logging section.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}

		logger.SetLevel(cfg.Logging.Level)
		logger.SetFormat(cfg.Logging.Format)
		if err := logger.SetOutput(cfg.Logging.Output); err != nil {
			c.configErr = fmt.Errorf("configure logging: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// services bundles the components every data command works with.
type services struct {
	cfg          *config.Config
	backend      *store.Lazy
	catalog      *catalog.Catalog
	orchestrator *download.Orchestrator
	metrics      *config.MetricsResult
}

func (s *services) Close() {
	if err := s.backend.Close(); err != nil {
		logger.Warn("Failed to close storage backend: %v", err)
	}
}

// withServices builds the storage backend and the downloader, runs fn and
// closes the backend afterwards.
func (c *commandContext) withServices(ctx context.Context, fn func(*services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	backend, err := config.CreateBackend(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}

	fetcher, err := config.CreateFetcher(ctx, &cfg.Fetch)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("create fetcher: %w", err)
	}

	metricsResult := config.InitializeMetrics(cfg, backend)
	cat := catalog.New(backend)

	svc := &services{
		cfg:          cfg,
		backend:      backend,
		catalog:      cat,
		orchestrator: download.New(cat, fetcher, download.WithMetrics(metricsResult.Download)),
		metrics:      metricsResult,
	}
	defer svc.Close()

	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
