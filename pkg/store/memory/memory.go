// Package memory implements an in-memory store.Backend.
//
// Records are deep-copied on the way in and on the way out, so callers can
// never alias stored bytes. Content is lost when the process exits; the
// backend is meant for tests and ephemeral sessions.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/tunecache/pkg/store"
)

// MemoryStore implements store.Backend with per-collection maps.
//
// Thread Safety:
// All operations are protected by a single RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[store.Collection]map[string]*store.Record
	closed  bool
	failPut error
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	data := make(map[store.Collection]map[string]*store.Record, len(store.Collections))
	for _, c := range store.Collections {
		data[c] = make(map[string]*store.Record)
	}
	return &MemoryStore{data: data}
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return fmt.Errorf("memory store closed: %w", store.ErrUnavailable)
	}
	return nil
}

func (s *MemoryStore) Put(ctx context.Context, collection store.Collection, key string, rec *store.Record) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	if s.failPut != nil {
		return fmt.Errorf("%s/%s: %v: %w", collection, key, s.failPut, store.ErrStorageWrite)
	}
	if err := store.ValidatePayload(rec.Payload); err != nil {
		return fmt.Errorf("%s/%s: %w", collection, key, err)
	}

	stored := rec.Clone()
	stored.Key = key
	s.data[collection][key] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection store.Collection, key string) (*store.Record, error) {
	if err := store.ValidateKey(collection, key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rec, ok := s.data[collection][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, store.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetAll(ctx context.Context, collection store.Collection) ([]*store.Record, error) {
	return s.collect(ctx, collection, func(*store.Record) bool { return true })
}

func (s *MemoryStore) FindWhere(ctx context.Context, collection store.Collection, field, value string) ([]*store.Record, error) {
	return s.collect(ctx, collection, func(rec *store.Record) bool {
		return store.MatchField(rec, field, value)
	})
}

func (s *MemoryStore) collect(ctx context.Context, collection store.Collection, keep func(*store.Record) bool) ([]*store.Record, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%q: %w", collection, store.ErrInvalidCollection)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	out := make([]*store.Record, 0, len(s.data[collection]))
	for _, rec := range s.data[collection] {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteByKey(ctx context.Context, collection store.Collection, key string) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	delete(s.data[collection], key)
	return nil
}

func (s *MemoryStore) DeleteWhere(ctx context.Context, collection store.Collection, field, value string) (int, error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("%q: %w", collection, store.ErrInvalidCollection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return 0, err
	}

	removed := 0
	for key, rec := range s.data[collection] {
		if store.MatchField(rec, field, value) {
			delete(s.data[collection], key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	stats := &store.Stats{Collections: make(map[store.Collection]store.CollectionStats, len(s.data))}
	for c, recs := range s.data {
		cs := store.CollectionStats{Records: len(recs)}
		for _, rec := range recs {
			cs.PayloadBytes += store.PayloadSize(rec.Payload)
		}
		stats.Collections[c] = cs
	}
	return stats, nil
}

func (s *MemoryStore) Healthcheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx)
}

// Close marks the store closed. Stored records are kept so a test can
// simulate an engine that becomes unavailable and is reopened.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reopen clears the closed flag.
func (s *MemoryStore) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}

// FailPuts makes every subsequent Put fail with store.ErrStorageWrite wrapping cause.
// Passing nil restores normal behavior.
func (s *MemoryStore) FailPuts(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = cause
}
