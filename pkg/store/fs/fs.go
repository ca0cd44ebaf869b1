// Package fs implements store.Backend on a sandboxed directory tree.
//
// This is the backend used on mobile runtimes, where the application only has
// a private data directory and no embedded database. Each record is one file:
//
//	<root>/<collection>/<sha256(key)>.rec
//
// A record file holds a fixed preamble, the JSON header and the payload bytes.
// Files are written to a temporary name in the same directory and renamed
// into place, so a reader either sees the previous record or the complete new
// one. The root directory is guarded by an advisory lock so two processes
// never share a sandbox.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/store"
)

const (
	recordExt  = ".rec"
	tempPrefix = ".tmp-"
	lockName   = ".tunecache.lock"

	// magic identifies a record file; the digit is the layout version.
	magic = "TCR1"
)

// FSStoreConfig configures the filesystem backend.
type FSStoreConfig struct {
	// Path is the sandbox root directory.
	Path string `mapstructure:"path"`
}

// FSStore implements store.Backend using one file per record.
//
// Thread Safety:
// Writers in this process are serialized by mu; readers only take the read
// lock. Cross-process exclusion is provided by the directory lock.
type FSStore struct {
	basePath string
	lock     *flock.Flock

	mu     sync.RWMutex
	closed bool
}

// NewFSStore opens the sandbox at config.Path, creating it if needed.
func NewFSStore(ctx context.Context, config FSStoreConfig) (*FSStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, fmt.Errorf("filesystem path is required")
	}

	// ========================================================================
	// Step 2: Create the collection directories
	// ========================================================================

	for _, c := range store.Collections {
		if err := os.MkdirAll(filepath.Join(config.Path, string(c)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create collection directory: %w", err)
		}
	}

	// ========================================================================
	// Step 3: Take the sandbox lock
	// ========================================================================

	lock := flock.New(filepath.Join(config.Path, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", config.Path, err)
	}
	if !locked {
		return nil, fmt.Errorf("sandbox %s is in use by another process", config.Path)
	}

	s := &FSStore{basePath: config.Path, lock: lock}
	s.sweepTemp()
	return s, nil
}

// sweepTemp removes temporary files left behind by an interrupted write.
func (s *FSStore) sweepTemp() {
	for _, c := range store.Collections {
		entries, err := os.ReadDir(s.dir(c))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), tempPrefix) {
				logger.Debug("Removing stale temp file %s/%s", c, e.Name())
				_ = os.Remove(filepath.Join(s.dir(c), e.Name()))
			}
		}
	}
}

func (s *FSStore) dir(collection store.Collection) string {
	return filepath.Join(s.basePath, string(collection))
}

// filePath maps a key to its record file. Keys are hashed so arbitrary ids
// and asset URLs become portable file names; the real key lives in the header.
func (s *FSStore) filePath(collection store.Collection, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir(collection), hex.EncodeToString(sum[:])+recordExt)
}

func (s *FSStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return fmt.Errorf("filesystem store closed: %w", store.ErrUnavailable)
	}
	return nil
}

func (s *FSStore) Put(ctx context.Context, collection store.Collection, key string, rec *store.Record) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	header, payload, err := store.SplitRecord(key, rec)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", collection, key, err)
	}
	headerBytes, err := store.EncodeHeader(header)
	if err != nil {
		return fmt.Errorf("%s/%s: %v: %w", collection, key, err, store.ErrStorageWrite)
	}

	if err := s.writeAtomic(ctx, s.filePath(collection, key), headerBytes, payload); err != nil {
		return fmt.Errorf("%s/%s: %v: %w", collection, key, err, store.ErrStorageWrite)
	}
	return nil
}

// writeAtomic writes preamble, header and payload to a temp file, syncs it and
// renames it over the destination.
func (s *FSStore) writeAtomic(ctx context.Context, dest string, header, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	preamble := make([]byte, len(magic)+4)
	copy(preamble, magic)
	binary.BigEndian.PutUint32(preamble[len(magic):], uint32(len(header)))

	if _, err := tmp.Write(preamble); err != nil {
		return err
	}
	if _, err := tmp.Write(header); err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Last cancellation point before the record becomes visible.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return err
	}
	committed = true
	return nil
}

// readFile parses a record file. With withPayload false only the header is read.
func readFile(path string, withPayload bool) (*store.Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	preamble := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(f, preamble); err != nil {
		return nil, nil, fmt.Errorf("%s: short preamble: %w", path, store.ErrDecode)
	}
	if string(preamble[:len(magic)]) != magic {
		return nil, nil, fmt.Errorf("%s: bad magic: %w", path, store.ErrDecode)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	headerLen := int64(binary.BigEndian.Uint32(preamble[len(magic):]))
	if headerLen > info.Size()-int64(len(preamble)) {
		return nil, nil, fmt.Errorf("%s: header length %d exceeds file size %d: %w", path, headerLen, info.Size(), store.ErrDecode)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("%s: short header: %w", path, store.ErrDecode)
	}
	header, err := store.DecodeHeader(headerBytes)
	if err != nil {
		return nil, nil, err
	}
	if !withPayload {
		return header, nil, nil
	}

	payload, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return header, payload, nil
}

func (s *FSStore) Get(ctx context.Context, collection store.Collection, key string) (*store.Record, error) {
	if err := store.ValidateKey(collection, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	header, payload, err := readFile(s.filePath(collection, key), true)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", collection, key, store.ErrNotFound)
		}
		return nil, err
	}
	return store.JoinRecord(header, payload)
}

func (s *FSStore) GetAll(ctx context.Context, collection store.Collection) ([]*store.Record, error) {
	return s.scan(ctx, collection, func(*store.Header) bool { return true })
}

func (s *FSStore) FindWhere(ctx context.Context, collection store.Collection, field, value string) ([]*store.Record, error) {
	return s.scan(ctx, collection, func(h *store.Header) bool {
		v, ok := h.Fields[field]
		return ok && v == value
	})
}

// recordFiles lists the record files of a collection.
func (s *FSStore) recordFiles(collection store.Collection) ([]string, error) {
	entries, err := os.ReadDir(s.dir(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		files = append(files, filepath.Join(s.dir(collection), name))
	}
	return files, nil
}

func (s *FSStore) scan(ctx context.Context, collection store.Collection, keep func(*store.Header) bool) ([]*store.Record, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%q: %w", collection, store.ErrInvalidCollection)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	files, err := s.recordFiles(collection)
	if err != nil {
		return nil, err
	}

	out := make([]*store.Record, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, _, err := readFile(path, false)
		if err != nil {
			logger.Warn("Skipping unreadable record %s: %v", path, err)
			continue
		}
		if !keep(header) {
			continue
		}

		header, payload, err := readFile(path, true)
		if err != nil {
			logger.Warn("Skipping unreadable record %s: %v", path, err)
			continue
		}
		rec, err := store.JoinRecord(header, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *FSStore) DeleteByKey(ctx context.Context, collection store.Collection, key string) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	return s.remove(s.filePath(collection, key))
}

func (s *FSStore) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %v: %w", path, err, store.ErrStorageWrite)
	}
	return nil
}

func (s *FSStore) DeleteWhere(ctx context.Context, collection store.Collection, field, value string) (int, error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("%q: %w", collection, store.ErrInvalidCollection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return 0, err
	}

	files, err := s.recordFiles(collection)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		header, _, err := readFile(path, false)
		if err != nil {
			continue
		}
		if v, ok := header.Fields[field]; !ok || v != value {
			continue
		}
		if err := s.remove(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *FSStore) Stats(ctx context.Context) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	stats := &store.Stats{Collections: make(map[store.Collection]store.CollectionStats, len(store.Collections))}
	for _, collection := range store.Collections {
		files, err := s.recordFiles(collection)
		if err != nil {
			return nil, err
		}

		var cs store.CollectionStats
		for _, path := range files {
			header, _, err := readFile(path, false)
			if err != nil {
				continue
			}
			cs.Records++
			cs.PayloadBytes += header.PayloadSize
		}
		stats.Collections[collection] = cs
	}
	return stats, nil
}

func (s *FSStore) Healthcheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := os.Stat(s.basePath); err != nil {
		return fmt.Errorf("sandbox %s: %v: %w", s.basePath, err, store.ErrUnavailable)
	}
	return nil
}

// Close releases the sandbox lock.
func (s *FSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.Unlock()
}
