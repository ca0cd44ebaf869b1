// Package gc removes album covers that no downloaded album references.
//
// A cover is written before its album record. A cancelled album download or
// an album cascade interrupted after the album record was removed leaves the
// cover behind. The collector finds such covers by joining album_covers with
// downloaded_albums and deletes them. Covers of an album whose download is
// still in progress are skipped.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/download"
	"github.com/marmos91/tunecache/pkg/store"
)

// Collector periodically sweeps orphaned covers.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	catalog  *catalog.Catalog
	progress *download.Progress
	config   Config

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether the background sweep runs.
	Enabled bool

	// Interval between sweeps (default: 1h)
	Interval time.Duration

	// DryRun logs what would be deleted without deleting it.
	DryRun bool
}

// NewCollector creates a collector. progress may be nil, in which case no
// album is considered in flight.
func NewCollector(cat *catalog.Catalog, progress *download.Progress, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}

	return &Collector{
		catalog:  cat,
		progress: progress,
		config:   config,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins background collection. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		c.started = true
		logger.Info("Starting garbage collector: interval=%s dry_run=%v", c.config.Interval, c.config.DryRun)
		go c.worker()
	})
}

// Stop stops the worker and waits for an in-progress sweep, or for ctx.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled || !c.started {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one sweep and blocks until it finishes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else if stats.OrphanedCount > 0 {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single sweep:
//  1. list downloaded album ids
//  2. list stored covers
//  3. orphaned = covers - albums - albums in flight
//  4. delete orphaned covers
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	albums, err := c.catalog.Keys(ctx, store.DownloadedAlbums)
	if err != nil {
		return stats, fmt.Errorf("failed to list albums: %w", err)
	}
	stats.AlbumCount = uint64(len(albums))

	referenced := make(map[string]struct{}, len(albums))
	for _, id := range albums {
		referenced[id] = struct{}{}
	}

	covers, err := c.catalog.Keys(ctx, store.AlbumCovers)
	if err != nil {
		return stats, fmt.Errorf("failed to list covers: %w", err)
	}
	stats.CoverCount = uint64(len(covers))

	var orphaned []string
	for _, id := range covers {
		if _, ok := referenced[id]; ok {
			continue
		}
		if c.inFlight(id) {
			stats.SkippedCount++
			continue
		}
		orphaned = append(orphaned, id)
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 || c.config.DryRun {
		for _, id := range orphaned {
			logger.Info("GC: DRY RUN - would delete cover of album %s", id)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	for _, id := range orphaned {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		if err := c.catalog.DeleteCover(ctx, id); err != nil {
			logger.Debug("GC: Failed to delete cover of album %s: %v", id, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	stats.EndTime = time.Now()
	logger.Info("GC: deleted %d orphaned covers, %d failed, duration=%s",
		stats.DeletedCount, stats.FailedCount, stats.Duration())

	return stats, nil
}

func (c *Collector) inFlight(albumID string) bool {
	if c.progress == nil {
		return false
	}
	_, ok := c.progress.Get(download.AlbumKey(albumID))
	return ok
}

// Stats contains statistics from one sweep.
type Stats struct {
	StartTime     time.Time
	EndTime       time.Time
	AlbumCount    uint64 // downloaded albums
	CoverCount    uint64 // stored covers
	OrphanedCount uint64 // covers without an album
	SkippedCount  uint64 // covers of albums still downloading
	DeletedCount  uint64
	FailedCount   uint64
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf("albums=%d covers=%d orphaned=%d skipped=%d deleted=%d failed=%d duration=%s",
		s.AlbumCount, s.CoverCount, s.OrphanedCount, s.SkippedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
