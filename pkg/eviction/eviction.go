// Package eviction removes cached content on demand.
package eviction

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/store"
)

// Kind selects what DeleteItem removes.
type Kind int

const (
	KindSong Kind = iota
	KindAlbum
)

func (k Kind) String() string {
	switch k {
	case KindSong:
		return "song"
	case KindAlbum:
		return "album"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "song" or "album".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "song":
		return KindSong, nil
	case "album":
		return KindAlbum, nil
	default:
		return 0, fmt.Errorf("unknown item kind %q", s)
	}
}

// Manager deletes songs and albums.
type Manager struct {
	catalog *catalog.Catalog
}

// New creates a manager over cat.
func New(cat *catalog.Catalog) *Manager {
	return &Manager{catalog: cat}
}

// DeleteItem removes a song, or an album with everything that depends on it.
//
// Deleting an id that is not stored is a successful no-op. The album cascade
// removes the songs with a matching album id, the album record, its cover
// payload and its cached descriptor. The steps are not atomic as a group: on
// failure the remaining steps are still attempted, the error is logged and
// false is returned, and a retry finishes the job.
func (m *Manager) DeleteItem(ctx context.Context, kind Kind, id string) bool {
	if id == "" {
		logger.Error("Cannot delete %s without id", kind)
		return false
	}

	var err error
	switch kind {
	case KindSong:
		err = m.catalog.DeleteSong(ctx, id)
	case KindAlbum:
		err = m.deleteAlbum(ctx, id)
	default:
		err = fmt.Errorf("unknown item kind %d", int(kind))
	}

	if err != nil {
		logger.Error("Failed to delete %s %s: %v", kind, id, err)
		return false
	}
	logger.Info("Deleted %s %s", kind, id)
	return true
}

func (m *Manager) deleteAlbum(ctx context.Context, albumID string) error {
	var errs []error

	// Songs first: an album record without songs is harmless, orphaned
	// songs are not reachable from the album anymore.
	n, err := m.catalog.DeleteAlbumSongs(ctx, albumID)
	if err != nil {
		errs = append(errs, fmt.Errorf("songs: %w", err))
	} else if n > 0 {
		logger.Debug("Removed %d songs of album %s", n, albumID)
	}

	if err := m.catalog.DeleteAlbum(ctx, albumID); err != nil {
		errs = append(errs, fmt.Errorf("album record: %w", err))
	}
	if err := m.catalog.DeleteCover(ctx, albumID); err != nil {
		errs = append(errs, fmt.Errorf("cover: %w", err))
	}
	if err := m.catalog.DeleteCachedAlbum(ctx, albumID); err != nil {
		errs = append(errs, fmt.Errorf("cached descriptor: %w", err))
	}

	return errors.Join(errs...)
}

// Purge removes every record of every collection and returns how many were
// removed.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	backend := m.catalog.Backend()
	total := 0

	for _, collection := range store.Collections {
		keys, err := m.catalog.Keys(ctx, collection)
		if err != nil {
			return total, fmt.Errorf("list %s: %w", collection, err)
		}
		for _, key := range keys {
			if err := backend.DeleteByKey(ctx, collection, key); err != nil {
				return total, fmt.Errorf("delete %s/%s: %w", collection, key, err)
			}
			total++
		}
	}

	logger.Info("Purged %d records", total)
	return total, nil
}
