// Package catalog maps tunecache's typed records onto a store.Backend.
//
// The catalog owns the layout of every collection: which fields are indexed,
// what the JSON descriptor looks like and which records carry a payload. It
// adds no caching of its own; every call goes to the backend.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/marmos91/tunecache/pkg/store"
)

// Catalog is the typed view over a backend.
type Catalog struct {
	backend store.Backend
	now     func() time.Time
}

// New creates a catalog over backend.
func New(backend store.Backend) *Catalog {
	return &Catalog{backend: backend, now: time.Now}
}

// Backend returns the underlying backend.
func (c *Catalog) Backend() store.Backend {
	return c.backend
}

// ============================================================================
// Downloaded songs
// ============================================================================

// PutSong upserts a downloaded song and its payload in one write.
func (c *Catalog) PutSong(ctx context.Context, song *DownloadedSong) error {
	if song.Payload == nil {
		return fmt.Errorf("song %s: payload is required", song.ID)
	}
	if song.DownloadedAt.IsZero() {
		song.DownloadedAt = c.now()
	}
	song.Size = store.PayloadSize(song.Payload)

	fields := map[string]string{}
	if song.AlbumID != "" {
		fields[FieldAlbumID] = song.AlbumID
	}

	rec, err := encodeRecord(song, fields, song.Payload)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, store.DownloadedSongs, song.ID, rec)
}

// Song returns a downloaded song with its payload, or store.ErrNotFound.
func (c *Catalog) Song(ctx context.Context, id string) (*DownloadedSong, error) {
	rec, err := c.backend.Get(ctx, store.DownloadedSongs, id)
	if err != nil {
		return nil, err
	}
	return decodeSong(rec)
}

// Songs lists every downloaded song, oldest first.
func (c *Catalog) Songs(ctx context.Context) ([]*DownloadedSong, error) {
	recs, err := c.backend.GetAll(ctx, store.DownloadedSongs)
	if err != nil {
		return nil, err
	}
	songs, err := decodeSongs(recs)
	if err != nil {
		return nil, err
	}
	sortSongs(songs)
	return songs, nil
}

// AlbumSongs lists the stored songs of an album. The result may hold fewer
// entries than the album's TotalTracks.
func (c *Catalog) AlbumSongs(ctx context.Context, albumID string) ([]*DownloadedSong, error) {
	recs, err := c.backend.FindWhere(ctx, store.DownloadedSongs, FieldAlbumID, albumID)
	if err != nil {
		return nil, err
	}
	songs, err := decodeSongs(recs)
	if err != nil {
		return nil, err
	}
	sortSongs(songs)
	return songs, nil
}

// ScanAlbumSongs is AlbumSongs without failing on unreadable records: songs
// that cannot be decoded are returned as keys in broken instead.
func (c *Catalog) ScanAlbumSongs(ctx context.Context, albumID string) (songs []*DownloadedSong, broken []string, err error) {
	recs, err := c.backend.FindWhere(ctx, store.DownloadedSongs, FieldAlbumID, albumID)
	if err != nil {
		return nil, nil, err
	}
	songs = make([]*DownloadedSong, 0, len(recs))
	for _, rec := range recs {
		song, err := decodeSong(rec)
		if err != nil {
			broken = append(broken, rec.Key)
			continue
		}
		songs = append(songs, song)
	}
	sortSongs(songs)
	sort.Strings(broken)
	return songs, broken, nil
}

// IsSongDownloaded reports whether a song record exists.
func (c *Catalog) IsSongDownloaded(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, store.DownloadedSongs, id)
}

// DeleteSong removes a song record and its payload. Missing songs are ignored.
func (c *Catalog) DeleteSong(ctx context.Context, id string) error {
	return c.backend.DeleteByKey(ctx, store.DownloadedSongs, id)
}

// DeleteAlbumSongs removes every song of an album and returns how many were removed.
func (c *Catalog) DeleteAlbumSongs(ctx context.Context, albumID string) (int, error) {
	return c.backend.DeleteWhere(ctx, store.DownloadedSongs, FieldAlbumID, albumID)
}

func sortSongs(songs []*DownloadedSong) {
	sort.SliceStable(songs, func(i, j int) bool {
		if !songs[i].DownloadedAt.Equal(songs[j].DownloadedAt) {
			return songs[i].DownloadedAt.Before(songs[j].DownloadedAt)
		}
		return songs[i].ID < songs[j].ID
	})
}

// ============================================================================
// Downloaded albums
// ============================================================================

// PutAlbum upserts a downloaded album record.
func (c *Catalog) PutAlbum(ctx context.Context, album *DownloadedAlbum) error {
	if album.DownloadedAt.IsZero() {
		album.DownloadedAt = c.now()
	}
	rec, err := encodeRecord(album, nil, nil)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, store.DownloadedAlbums, album.AlbumID, rec)
}

// Album returns a downloaded album, or store.ErrNotFound.
func (c *Catalog) Album(ctx context.Context, id string) (*DownloadedAlbum, error) {
	rec, err := c.backend.Get(ctx, store.DownloadedAlbums, id)
	if err != nil {
		return nil, err
	}
	return decodeAlbum(rec)
}

// Albums lists every downloaded album, oldest first.
func (c *Catalog) Albums(ctx context.Context) ([]*DownloadedAlbum, error) {
	recs, err := c.backend.GetAll(ctx, store.DownloadedAlbums)
	if err != nil {
		return nil, err
	}

	albums := make([]*DownloadedAlbum, 0, len(recs))
	for _, rec := range recs {
		album, err := decodeAlbum(rec)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	sort.SliceStable(albums, func(i, j int) bool {
		if !albums[i].DownloadedAt.Equal(albums[j].DownloadedAt) {
			return albums[i].DownloadedAt.Before(albums[j].DownloadedAt)
		}
		return albums[i].AlbumID < albums[j].AlbumID
	})
	return albums, nil
}

// IsAlbumDownloaded reports whether an album record exists.
func (c *Catalog) IsAlbumDownloaded(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, store.DownloadedAlbums, id)
}

// DeleteAlbum removes the album record only; see eviction for the cascade.
func (c *Catalog) DeleteAlbum(ctx context.Context, id string) error {
	return c.backend.DeleteByKey(ctx, store.DownloadedAlbums, id)
}

// ============================================================================
// Covers, descriptors and images
// ============================================================================

// PutCover stores the cover art of an album.
func (c *Catalog) PutCover(ctx context.Context, cover *AlbumCover) error {
	if cover.Payload == nil {
		return fmt.Errorf("cover %s: payload is required", cover.AlbumID)
	}
	if cover.CachedAt.IsZero() {
		cover.CachedAt = c.now()
	}
	rec, err := encodeRecord(cover, nil, cover.Payload)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, store.AlbumCovers, cover.AlbumID, rec)
}

// Cover returns the stored cover of an album, or store.ErrNotFound.
func (c *Catalog) Cover(ctx context.Context, albumID string) (*AlbumCover, error) {
	rec, err := c.backend.Get(ctx, store.AlbumCovers, albumID)
	if err != nil {
		return nil, err
	}
	var cover AlbumCover
	if err := decodeRecord(rec, &cover); err != nil {
		return nil, err
	}
	cover.AlbumID = rec.Key
	cover.Payload = rec.Payload
	return &cover, nil
}

// DeleteCover removes an album cover.
func (c *Catalog) DeleteCover(ctx context.Context, albumID string) error {
	return c.backend.DeleteByKey(ctx, store.AlbumCovers, albumID)
}

// PutCachedAlbum stores an album descriptor for offline browsing.
func (c *Catalog) PutCachedAlbum(ctx context.Context, album *CachedAlbum) error {
	if album.CachedAt.IsZero() {
		album.CachedAt = c.now()
	}
	rec, err := encodeRecord(album, nil, nil)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, store.CachedAlbums, album.AlbumID, rec)
}

// CachedAlbum returns a cached album descriptor, or store.ErrNotFound.
func (c *Catalog) CachedAlbum(ctx context.Context, id string) (*CachedAlbum, error) {
	rec, err := c.backend.Get(ctx, store.CachedAlbums, id)
	if err != nil {
		return nil, err
	}
	var album CachedAlbum
	if err := decodeRecord(rec, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// DeleteCachedAlbum removes a cached album descriptor.
func (c *Catalog) DeleteCachedAlbum(ctx context.Context, id string) error {
	return c.backend.DeleteByKey(ctx, store.CachedAlbums, id)
}

// PutCachedArtist stores an artist descriptor for offline browsing.
func (c *Catalog) PutCachedArtist(ctx context.Context, artist *CachedArtist) error {
	if artist.CachedAt.IsZero() {
		artist.CachedAt = c.now()
	}
	rec, err := encodeRecord(artist, nil, nil)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, store.CachedArtists, artist.ArtistID, rec)
}

// CachedArtist returns a cached artist descriptor, or store.ErrNotFound.
func (c *Catalog) CachedArtist(ctx context.Context, id string) (*CachedArtist, error) {
	rec, err := c.backend.Get(ctx, store.CachedArtists, id)
	if err != nil {
		return nil, err
	}
	var artist CachedArtist
	if err := decodeRecord(rec, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// PutImage stores an image keyed by its source URL.
func (c *Catalog) PutImage(ctx context.Context, img *CachedImage) error {
	if img.Payload == nil {
		return fmt.Errorf("image %s: payload is required", img.URL)
	}
	if img.CachedAt.IsZero() {
		img.CachedAt = c.now()
	}
	rec, err := encodeRecord(img, nil, img.Payload)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, store.CachedImages, img.URL, rec)
}

// Image returns a cached image, or store.ErrNotFound.
func (c *Catalog) Image(ctx context.Context, url string) (*CachedImage, error) {
	rec, err := c.backend.Get(ctx, store.CachedImages, url)
	if err != nil {
		return nil, err
	}
	var img CachedImage
	if err := decodeRecord(rec, &img); err != nil {
		return nil, err
	}
	img.URL = rec.Key
	img.Payload = rec.Payload
	return &img, nil
}

// ============================================================================
// Maintenance
// ============================================================================

// Stats reports per-collection counts and payload sizes.
func (c *Catalog) Stats(ctx context.Context) (*store.Stats, error) {
	return c.backend.Stats(ctx)
}

// Keys lists the primary keys of a collection.
func (c *Catalog) Keys(ctx context.Context, collection store.Collection) ([]string, error) {
	recs, err := c.backend.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(recs))
	for _, rec := range recs {
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Catalog) exists(ctx context.Context, collection store.Collection, key string) (bool, error) {
	_, err := c.backend.Get(ctx, collection, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
