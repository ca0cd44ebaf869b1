package config

import (
	"context"
	"fmt"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/fetch"
	"github.com/marmos91/tunecache/pkg/librarycache"
	"github.com/marmos91/tunecache/pkg/platform"
	"github.com/marmos91/tunecache/pkg/store"
	badgerstore "github.com/marmos91/tunecache/pkg/store/badger"
	fsstore "github.com/marmos91/tunecache/pkg/store/fs"
	"github.com/marmos91/tunecache/pkg/store/memory"
	"github.com/mitchellh/mapstructure"
)

// CreateBackend builds the storage backend selected by cfg.
//
// This is the only place that knows the concrete backends. The returned
// backend opens on first use and reopens once when the engine becomes
// unavailable. Backend options are decoded eagerly so configuration errors
// surface here rather than on the first download.
//
// Supported types:
//   - "auto": filesystem on mobile runtimes, badger elsewhere
//   - "badger": embedded BadgerDB (pkg/store/badger)
//   - "filesystem": one file per record in a sandbox directory (pkg/store/fs)
//   - "memory": in-process, lost on exit (pkg/store/memory)
func CreateBackend(ctx context.Context, cfg *StorageConfig) (*store.Lazy, error) {
	kind, err := platform.Resolve(cfg.Type)
	if err != nil {
		return nil, err
	}

	var open store.Opener
	switch kind {
	case platform.Badger:
		open, err = badgerOpener(cfg.Badger)
	case platform.Filesystem:
		open, err = filesystemOpener(cfg.Filesystem)
	case platform.Memory:
		// A reopened memory store must keep its records.
		mem := memory.New()
		open = func(context.Context) (store.Backend, error) {
			mem.Reopen()
			return mem, nil
		}
	default:
		err = fmt.Errorf("unknown storage type: %q", kind)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Storage backend: %s (configured %q)", kind, cfg.Type)
	return store.NewLazy(string(kind), open), nil
}

func badgerOpener(options map[string]any) (store.Opener, error) {
	if _, ok := options["in_memory"]; ok {
		return nil, fmt.Errorf("badger backend: in_memory is not supported, use storage type memory")
	}

	var storeCfg badgerstore.BadgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("badger backend: path is required")
	}

	return func(ctx context.Context) (store.Backend, error) {
		return badgerstore.NewBadgerStore(ctx, storeCfg)
	}, nil
}

func filesystemOpener(options map[string]any) (store.Opener, error) {
	var storeCfg fsstore.FSStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem backend: path is required")
	}

	return func(ctx context.Context) (store.Backend, error) {
		return fsstore.NewFSStore(ctx, storeCfg)
	}, nil
}

// s3FetchConfig is the fetch.s3 section.
type s3FetchConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	fetch.S3Config `mapstructure:",squash"`
}

// CreateFetcher builds the remote provider client: http and https always,
// s3 when fetch.s3.enabled is set. Every scheme shares the rate limit.
func CreateFetcher(ctx context.Context, cfg *FetchConfig) (fetch.Fetcher, error) {
	httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPConfig{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		MaxBytes:  cfg.MaxBytes,
	})

	router := fetch.NewRouter().
		Handle("http", httpFetcher).
		Handle("https", httpFetcher)

	var s3Cfg s3FetchConfig
	if err := mapstructure.Decode(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 config: %w", err)
	}
	if s3Cfg.Enabled {
		client, err := fetch.NewS3Client(ctx, s3Cfg.S3Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		router.Handle("s3", fetch.NewS3Fetcher(client))
	}

	if cfg.RateLimit.RequestsPerSecond > 0 {
		logger.Info("Provider rate limit: %.2f req/s (burst %d)", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	return fetch.NewRateLimited(router, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), nil
}

// CreateLibraryCache opens the library snapshot, or returns nil when it is
// disabled.
func CreateLibraryCache(cfg *LibraryCacheConfig) (*librarycache.Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return librarycache.Open(librarycache.Config{Path: cfg.Path, Version: cfg.Version})
}
