// Package badger implements store.Backend on top of BadgerDB.
//
// This is the embedded object store used on desktop and server hosts. Record
// headers and payloads live under sibling keys and are written in one
// transaction, which gives the single-record atomicity the store contract
// requires. Large payloads are kept in Badger's value log, so a 10 MB song
// does not inflate the LSM tree.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/tunecache/pkg/store"
)

// BadgerStoreConfig configures the Badger backend.
type BadgerStoreConfig struct {
	// Path is the directory holding the database files.
	Path string `mapstructure:"path"`

	// BlockCacheSizeMB is the block cache size. Default: 64.
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is the index cache size. Default: 32.
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// BadgerOptions overrides every other setting when non-nil.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// BadgerStore implements store.Backend using BadgerDB.
//
// Thread Safety:
// BadgerDB transactions provide isolation; the store holds no additional locks.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database.
func NewBadgerStore(ctx context.Context, config BadgerStoreConfig) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		// In-memory Badger keeps every value inline and rejects values over
		// 1 MB, which no song fits in. storage.type=memory covers that case.
		if config.Path == "" {
			return nil, fmt.Errorf("badger path is required")
		}
		opts = badger.DefaultOptions(config.Path)

		// Audio payloads are already compressed.
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.Path, err)
	}

	return &BadgerStore{db: db}, nil
}

// mapError translates Badger errors into store sentinels.
func mapError(err error, collection store.Collection, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("%s/%s: %w", collection, key, store.ErrNotFound)
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("badger: %v: %w", err, store.ErrUnavailable)
	default:
		return err
	}
}

func (s *BadgerStore) Put(ctx context.Context, collection store.Collection, key string, rec *store.Record) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	header, payload, err := store.SplitRecord(key, rec)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", collection, key, err)
	}
	data, err := store.EncodeHeader(header)
	if err != nil {
		return fmt.Errorf("%s/%s: %v: %w", collection, key, err, store.ErrStorageWrite)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyRecord(collection, key), data); err != nil {
			return err
		}
		if header.PayloadKind == store.KindNone {
			err := txn.Delete(keyPayload(collection, key))
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return nil
		}
		if payload == nil {
			payload = []byte{}
		}
		return txn.Set(keyPayload(collection, key), payload)
	})
	if err != nil {
		if mapped := mapError(err, collection, key); errors.Is(mapped, store.ErrUnavailable) {
			return mapped
		}
		return fmt.Errorf("%s/%s: %v: %w", collection, key, err, store.ErrStorageWrite)
	}
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, collection store.Collection, key string) (*store.Record, error) {
	if err := store.ValidateKey(collection, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *store.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(collection, key))
		if err != nil {
			return err
		}
		rec, err = s.loadRecord(txn, collection, item)
		return err
	})
	if err != nil {
		return nil, mapError(err, collection, key)
	}
	return rec, nil
}

// loadRecord decodes a header item and attaches its payload.
func (s *BadgerStore) loadRecord(txn *badger.Txn, collection store.Collection, item *badger.Item) (*store.Record, error) {
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	header, err := store.DecodeHeader(raw)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if header.PayloadKind != store.KindNone {
		pItem, err := txn.Get(keyPayload(collection, header.Key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil, fmt.Errorf("%s/%s: payload missing: %w", collection, header.Key, store.ErrDecode)
			}
			return nil, err
		}
		payload, err = pItem.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
	}

	return store.JoinRecord(header, payload)
}

func (s *BadgerStore) GetAll(ctx context.Context, collection store.Collection) ([]*store.Record, error) {
	return s.scan(ctx, collection, func(*store.Header) bool { return true })
}

func (s *BadgerStore) FindWhere(ctx context.Context, collection store.Collection, field, value string) ([]*store.Record, error) {
	return s.scan(ctx, collection, func(h *store.Header) bool {
		v, ok := h.Fields[field]
		return ok && v == value
	})
}

// scan iterates the headers of a collection and loads the matching records.
func (s *BadgerStore) scan(ctx context.Context, collection store.Collection, keep func(*store.Header) bool) ([]*store.Record, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%q: %w", collection, store.ErrInvalidCollection)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*store.Record
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(collection)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 50})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			header, err := store.DecodeHeader(raw)
			if err != nil {
				return err
			}
			if !keep(header) {
				continue
			}

			rec, err := s.loadRecord(txn, collection, it.Item())
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, collection, "")
	}
	return out, nil
}

func (s *BadgerStore) DeleteByKey(ctx context.Context, collection store.Collection, key string) error {
	if err := store.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(keyRecord(collection, key)); err != nil {
			return err
		}
		return txn.Delete(keyPayload(collection, key))
	})
	if err != nil {
		if mapped := mapError(err, collection, key); errors.Is(mapped, store.ErrUnavailable) {
			return mapped
		}
		return fmt.Errorf("%s/%s: delete: %v: %w", collection, key, err, store.ErrStorageWrite)
	}
	return nil
}

func (s *BadgerStore) DeleteWhere(ctx context.Context, collection store.Collection, field, value string) (int, error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("%q: %w", collection, store.ErrInvalidCollection)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Step 1: collect matching keys in a read transaction
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(collection)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			header, err := store.DecodeHeader(raw)
			if err != nil {
				return err
			}
			if v, ok := header.Fields[field]; ok && v == value {
				keys = append(keys, header.Key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, mapError(err, collection, "")
	}

	// Step 2: delete each record in its own transaction
	removed := 0
	for _, key := range keys {
		if err := s.DeleteByKey(ctx, collection, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *BadgerStore) Stats(ctx context.Context) (*store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &store.Stats{Collections: make(map[store.Collection]store.CollectionStats, len(store.Collections))}
	err := s.db.View(func(txn *badger.Txn) error {
		for _, collection := range store.Collections {
			prefix := recordPrefix(collection)
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})

			var cs store.CollectionStats
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				raw, err := it.Item().ValueCopy(nil)
				if err != nil {
					it.Close()
					return err
				}
				header, err := store.DecodeHeader(raw)
				if err != nil {
					it.Close()
					return err
				}
				cs.Records++
				cs.PayloadBytes += header.PayloadSize
			}
			it.Close()
			stats.Collections[collection] = cs
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "", "")
	}
	return stats, nil
}

func (s *BadgerStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger: %w", store.ErrUnavailable)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}
