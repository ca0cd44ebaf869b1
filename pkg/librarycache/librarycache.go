// Package librarycache keeps the last known library listing for offline browsing.
//
// One versioned snapshot is stored in a BoltDB file. A snapshot written by a
// different version is ignored on load rather than decoded into a shape it
// may no longer match.
package librarycache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/tunecache/internal/logger"
	bolt "go.etcd.io/bbolt"
)

// DefaultVersion is the snapshot format written when none is configured.
const DefaultVersion = "1.0"

var (
	bucketLibrary = []byte("library")
	keySnapshot   = []byte("snapshot")
)

// Config configures the snapshot file.
type Config struct {
	// Path is the BoltDB file.
	Path string `mapstructure:"path"`

	// Version tags written snapshots; snapshots with another tag are ignored.
	Version string `mapstructure:"version"`
}

type snapshot struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Cache stores the library snapshot.
type Cache struct {
	db      *bolt.DB
	version string
	now     func() time.Time
}

// Open opens (or creates) the snapshot file.
func Open(cfg Config) (*Cache, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("library cache path is required")
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create library cache directory: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open library cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLibrary)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Cache{db: db, version: cfg.Version, now: time.Now}, nil
}

// Close closes the snapshot file.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Save replaces the snapshot with data encoded as JSON.
func (c *Cache) Save(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	blob, err := json.Marshal(snapshot{Version: c.version, Timestamp: c.now().UTC(), Data: raw})
	if err != nil {
		return err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLibrary).Put(keySnapshot, blob)
	})
	if err != nil {
		return fmt.Errorf("failed to save library snapshot: %w", err)
	}
	logger.Debug("Saved library snapshot (%d bytes)", len(raw))
	return nil
}

// Load decodes the snapshot into out and returns its age. ok is false when
// there is no snapshot or it was written by another version.
func (c *Cache) Load(out any) (age time.Duration, ok bool, err error) {
	var blob []byte
	err = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketLibrary).Get(keySnapshot); v != nil {
			blob = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || blob == nil {
		return 0, false, err
	}

	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return 0, false, fmt.Errorf("corrupt library snapshot: %w", err)
	}
	if snap.Version != c.version {
		logger.Warn("Ignoring library snapshot version %q (want %q)", snap.Version, c.version)
		return 0, false, nil
	}
	if err := json.Unmarshal(snap.Data, out); err != nil {
		return 0, false, fmt.Errorf("failed to decode library snapshot: %w", err)
	}

	age = c.now().Sub(snap.Timestamp)
	logger.Debug("Loaded library snapshot (%s old)", age.Truncate(time.Second))
	return age, true, nil
}

// Has reports whether a snapshot exists, whatever its version.
func (c *Cache) Has() bool {
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketLibrary).Get(keySnapshot) != nil
		return nil
	})
	return found
}

// Clear removes the snapshot.
func (c *Cache) Clear() error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLibrary).Delete(keySnapshot)
	})
	if err != nil {
		return fmt.Errorf("failed to clear library snapshot: %w", err)
	}
	return nil
}
