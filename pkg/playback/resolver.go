// Package playback turns stored payloads into playable local references.
//
// The resolver hides how a payload was stored: songs saved as self-describing
// blobs and songs saved as raw buffers with a side MIME type both come back
// as a Ref. References belong to the caller, who must release them through
// the Registry.
package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/store"
)

// Resolver mints references for stored songs, covers and images.
type Resolver struct {
	catalog  *catalog.Catalog
	registry *Registry
}

// NewResolver creates a resolver minting into registry. A nil registry gets
// a private one.
func NewResolver(cat *catalog.Catalog, registry *Registry) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{catalog: cat, registry: registry}
}

// Registry returns the registry references are minted into.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns a reference to the stored audio of songID. A missing song
// yields store.ErrNotFound; a payload that cannot be reconstructed yields
// store.ErrDecode.
func (r *Resolver) Resolve(ctx context.Context, songID string) (*Ref, error) {
	song, err := r.catalog.Song(ctx, songID)
	if err != nil {
		return nil, err
	}

	mimeType, data, err := normalize(song.Payload, song.MimeType, catalog.DefaultAudioMimeType)
	if err != nil {
		return nil, fmt.Errorf("song %s: %w", songID, err)
	}

	ref := r.registry.mint("song:"+songID, songID, mimeType, data)
	return &ref, nil
}

// ResolveCover returns a reference to the stored cover of albumID.
func (r *Resolver) ResolveCover(ctx context.Context, albumID string) (*Ref, error) {
	cover, err := r.catalog.Cover(ctx, albumID)
	if err != nil {
		return nil, err
	}

	mimeType, data, err := normalize(cover.Payload, "", "")
	if err != nil {
		return nil, fmt.Errorf("cover %s: %w", albumID, err)
	}

	ref := r.registry.mint("cover:"+albumID, albumID, mimeType, data)
	return &ref, nil
}

// ResolveImage returns a reference to the cached image fetched from url.
func (r *Resolver) ResolveImage(ctx context.Context, url string) (*Ref, error) {
	img, err := r.catalog.Image(ctx, url)
	if err != nil {
		return nil, err
	}

	mimeType, data, err := normalize(img.Payload, "", "")
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", url, err)
	}

	ref := r.registry.mint("image:"+url, url, mimeType, data)
	return &ref, nil
}

// AlbumRefs holds the references minted for one downloaded album.
type AlbumRefs struct {
	AlbumID     string
	TotalTracks int

	// Songs is in download order and may be shorter than TotalTracks.
	Songs []*Ref

	// Cover is nil when the album has no stored cover.
	Cover *Ref

	// Skipped lists songs whose payload could not be resolved.
	Skipped []string
}

// ResolveAlbum mints references for every stored song of a downloaded album
// plus its cover.
//
// The album record must exist, otherwise store.ErrNotFound is returned.
// Songs that fail to resolve are skipped and listed in Skipped; a missing or
// unreadable cover leaves Cover nil. The caller owns every returned
// reference, ReleaseAlbum drops them together.
func (r *Resolver) ResolveAlbum(ctx context.Context, albumID string) (*AlbumRefs, error) {
	album, err := r.catalog.Album(ctx, albumID)
	if err != nil {
		return nil, err
	}

	songs, broken, err := r.catalog.ScanAlbumSongs(ctx, albumID)
	if err != nil {
		return nil, err
	}

	refs := &AlbumRefs{
		AlbumID:     albumID,
		TotalTracks: album.TotalTracks,
		Songs:       make([]*Ref, 0, len(songs)),
	}
	for _, id := range broken {
		logger.Warn("Album %s: skipping unreadable song %s", albumID, id)
		refs.Skipped = append(refs.Skipped, id)
	}

	for _, song := range songs {
		mimeType, data, err := normalize(song.Payload, song.MimeType, catalog.DefaultAudioMimeType)
		if err != nil {
			logger.Warn("Album %s: skipping song %s: %v", albumID, song.ID, err)
			refs.Skipped = append(refs.Skipped, song.ID)
			continue
		}
		ref := r.registry.mint("song:"+song.ID, song.ID, mimeType, data)
		refs.Songs = append(refs.Songs, &ref)
	}

	cover, err := r.ResolveCover(ctx, albumID)
	switch {
	case err == nil:
		refs.Cover = cover
	case errors.Is(err, store.ErrNotFound):
	default:
		logger.Warn("Album %s: cover unavailable: %v", albumID, err)
	}

	logger.Debug("Resolved album %s: %d/%d songs, cover=%v", albumID, len(refs.Songs), refs.TotalTracks, refs.Cover != nil)
	return refs, nil
}

// ReleaseAlbum drops every reference held by refs.
func (r *Resolver) ReleaseAlbum(refs *AlbumRefs) {
	if refs == nil {
		return
	}
	for _, ref := range refs.Songs {
		r.registry.Release(ref.URL)
	}
	if refs.Cover != nil {
		r.registry.Release(refs.Cover.URL)
	}
}

// Release drops a reference obtained from this resolver.
func (r *Resolver) Release(url string) bool {
	return r.registry.Release(url)
}

// normalize resolves the payload variant into a media type and bytes.
// recorded is the MIME type kept in the record descriptor.
func normalize(p store.Payload, recorded, fallback string) (string, []byte, error) {
	var (
		mimeType string
		data     []byte
	)

	switch v := p.(type) {
	case store.Blob:
		mimeType, data = v.ContentType, v.Data
	case *store.Blob:
		mimeType, data = v.ContentType, v.Data
	case store.Buffer:
		mimeType, data = v.MimeType, v.Data
	case *store.Buffer:
		mimeType, data = v.MimeType, v.Data
	case nil:
		return "", nil, fmt.Errorf("no payload: %w", store.ErrDecode)
	default:
		return "", nil, fmt.Errorf("unsupported payload %T: %w", p, store.ErrDecode)
	}

	if mimeType == "" {
		mimeType = recorded
	}
	if mimeType == "" {
		mimeType = fallback
	}
	if data == nil {
		data = []byte{}
	}
	return mimeType, data, nil
}
