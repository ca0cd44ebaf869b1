// Package store defines the persistence contract shared by every tunecache backend.
//
// A Backend is a collection-scoped key-value store. Each record carries an
// encoded descriptor, a small set of indexed scalar fields used for
// secondary-key queries, and at most one binary payload. The download,
// playback and eviction layers only ever see this interface; concrete
// implementations (embedded badger, sandboxed filesystem, memory) are chosen
// once at startup by the config package.
//
// Atomicity:
// Every single-record operation (Put, Get, DeleteByKey) is atomic: a reader
// never observes a record without its payload or a payload without its
// record. Multi-record operations (DeleteWhere) are not atomic as a group.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Collection names a logical table of records.
type Collection string

const (
	DownloadedSongs  Collection = "downloaded_songs"
	DownloadedAlbums Collection = "downloaded_albums"
	CachedAlbums     Collection = "cached_albums"
	CachedArtists    Collection = "cached_artists"
	AlbumCovers      Collection = "album_covers"
	CachedImages     Collection = "cached_images"
)

// Collections lists every collection known to the store, in a stable order.
var Collections = []Collection{
	DownloadedSongs,
	DownloadedAlbums,
	CachedAlbums,
	CachedArtists,
	AlbumCovers,
	CachedImages,
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Record is one persisted entry of a collection.
type Record struct {
	// Key is the primary key within the collection (item id or asset URL).
	Key string

	// Fields holds indexed scalar fields, matched exactly by DeleteWhere and FindWhere.
	Fields map[string]string

	// Value is the encoded descriptor of the record (JSON in practice).
	Value []byte

	// Payload is the optional binary content attached to the record.
	Payload Payload
}

// Field returns the indexed field value, or "" when absent.
func (r *Record) Field(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := &Record{Key: r.Key}
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Value != nil {
		out.Value = append([]byte{}, r.Value...)
	}
	if r.Payload != nil {
		out.Payload = clonePayload(r.Payload)
	}
	return out
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Records      int
	PayloadBytes int64
}

// Stats is a point-in-time summary of a backend's content.
type Stats struct {
	Collections map[Collection]CollectionStats
}

// TotalRecords returns the number of records across all collections.
func (s *Stats) TotalRecords() int {
	total := 0
	for _, c := range s.Collections {
		total += c.Records
	}
	return total
}

// TotalPayloadBytes returns the number of payload bytes across all collections.
func (s *Stats) TotalPayloadBytes() int64 {
	var total int64
	for _, c := range s.Collections {
		total += c.PayloadBytes
	}
	return total
}

// Backend is the persistence contract implemented by every storage engine.
//
// Implementations must be safe for concurrent use. Operations on a closed
// backend fail with ErrUnavailable, which lets Lazy reopen it once.
type Backend interface {
	// Put upserts the record under key. The record and its payload are
	// written atomically; a failed write leaves no partial record.
	Put(ctx context.Context, collection Collection, key string, rec *Record) error

	// Get returns the record under key, or ErrNotFound.
	Get(ctx context.Context, collection Collection, key string) (*Record, error)

	// GetAll returns every record of the collection, payloads included.
	GetAll(ctx context.Context, collection Collection) ([]*Record, error)

	// FindWhere returns every record whose indexed field equals value.
	FindWhere(ctx context.Context, collection Collection, field, value string) ([]*Record, error)

	// DeleteByKey removes the record and its payload. Deleting a missing key succeeds.
	DeleteByKey(ctx context.Context, collection Collection, key string) error

	// DeleteWhere removes every record whose indexed field equals value
	// and returns how many were removed.
	DeleteWhere(ctx context.Context, collection Collection, field, value string) (int, error)

	// Stats reports per-collection record counts and payload sizes.
	Stats(ctx context.Context) (*Stats, error)

	// Healthcheck verifies the backend is open and usable.
	Healthcheck(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// ValidateKey checks a collection/key pair before it reaches a backend.
func ValidateKey(collection Collection, key string) error {
	if !collection.Valid() {
		return fmt.Errorf("%q: %w", collection, ErrInvalidCollection)
	}
	if key == "" || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return nil
}

// MatchField reports whether rec's indexed field equals value.
func MatchField(rec *Record, field, value string) bool {
	if rec == nil || rec.Fields == nil {
		return false
	}
	v, ok := rec.Fields[field]
	return ok && v == value
}
