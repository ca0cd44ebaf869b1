package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/tunecache/internal/logger"
)

// Opener opens a concrete backend.
type Opener func(ctx context.Context) (Backend, error)

// Lazy is a Backend that opens its underlying engine on first use and, when an
// operation fails because the engine is unavailable, reopens it exactly once
// and retries that operation before surfacing the error.
//
// Lazy is the only Backend the rest of tunecache holds; it makes engine
// lifecycle invisible to the download, playback and eviction layers.
type Lazy struct {
	name string
	open Opener

	mu      sync.Mutex
	backend Backend
	closed  bool
}

// NewLazy wraps an opener. Nothing is opened until the first operation.
func NewLazy(name string, open Opener) *Lazy {
	return &Lazy{name: name, open: open}
}

// Name returns the engine name used in log lines.
func (l *Lazy) Name() string {
	return l.name
}

func (l *Lazy) current(ctx context.Context) (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("%s: %w", l.name, ErrUnavailable)
	}
	if l.backend != nil {
		return l.backend, nil
	}

	b, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", l.name, err, ErrUnavailable)
	}
	logger.Debug("Storage backend %s opened", l.name)
	l.backend = b
	return b, nil
}

// reopen replaces failed with a fresh engine. When another goroutine already
// replaced it, the replacement is reused.
func (l *Lazy) reopen(ctx context.Context, failed Backend) (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("%s: %w", l.name, ErrUnavailable)
	}
	if l.backend != nil && l.backend != failed {
		return l.backend, nil
	}
	if failed != nil {
		_ = failed.Close()
	}
	l.backend = nil

	b, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("reopen %s: %v: %w", l.name, err, ErrUnavailable)
	}
	logger.Info("Storage backend %s reopened", l.name)
	l.backend = b
	return b, nil
}

// do runs fn against the current engine, reopening once on ErrUnavailable.
func (l *Lazy) do(ctx context.Context, fn func(Backend) error) error {
	b, err := l.current(ctx)
	if err != nil {
		return err
	}

	err = fn(b)
	if err == nil || !errors.Is(err, ErrUnavailable) {
		return err
	}

	logger.Warn("Storage backend %s unavailable, reopening: %v", l.name, err)
	b, rerr := l.reopen(ctx, b)
	if rerr != nil {
		logger.Error("Storage backend %s could not be reopened: %v", l.name, rerr)
		return err
	}
	return fn(b)
}

func (l *Lazy) Put(ctx context.Context, collection Collection, key string, rec *Record) error {
	return l.do(ctx, func(b Backend) error {
		return b.Put(ctx, collection, key, rec)
	})
}

func (l *Lazy) Get(ctx context.Context, collection Collection, key string) (*Record, error) {
	var rec *Record
	err := l.do(ctx, func(b Backend) error {
		var err error
		rec, err = b.Get(ctx, collection, key)
		return err
	})
	return rec, err
}

func (l *Lazy) GetAll(ctx context.Context, collection Collection) ([]*Record, error) {
	var recs []*Record
	err := l.do(ctx, func(b Backend) error {
		var err error
		recs, err = b.GetAll(ctx, collection)
		return err
	})
	return recs, err
}

func (l *Lazy) FindWhere(ctx context.Context, collection Collection, field, value string) ([]*Record, error) {
	var recs []*Record
	err := l.do(ctx, func(b Backend) error {
		var err error
		recs, err = b.FindWhere(ctx, collection, field, value)
		return err
	})
	return recs, err
}

func (l *Lazy) DeleteByKey(ctx context.Context, collection Collection, key string) error {
	return l.do(ctx, func(b Backend) error {
		return b.DeleteByKey(ctx, collection, key)
	})
}

func (l *Lazy) DeleteWhere(ctx context.Context, collection Collection, field, value string) (int, error) {
	var n int
	err := l.do(ctx, func(b Backend) error {
		var err error
		n, err = b.DeleteWhere(ctx, collection, field, value)
		return err
	})
	return n, err
}

func (l *Lazy) Stats(ctx context.Context) (*Stats, error) {
	var stats *Stats
	err := l.do(ctx, func(b Backend) error {
		var err error
		stats, err = b.Stats(ctx)
		return err
	})
	return stats, err
}

func (l *Lazy) Healthcheck(ctx context.Context) error {
	return l.do(ctx, func(b Backend) error {
		return b.Healthcheck(ctx)
	})
}

// Close closes the engine if it was opened. A closed Lazy stays closed.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.backend == nil {
		return nil
	}
	err := l.backend.Close()
	l.backend = nil
	return err
}
