package catalog

import (
	"encoding/json"
	"time"

	"github.com/marmos91/tunecache/pkg/store"
)

// FieldAlbumID is the indexed field linking a song to its album.
const FieldAlbumID = "albumId"

// DefaultAudioMimeType is assumed for audio payloads stored without a type.
const DefaultAudioMimeType = "audio/mpeg"

// Song is the remote description of a track, as handed to the downloader.
type Song struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	AlbumID    string  `json:"albumId,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	FileName   string  `json:"fileName,omitempty"`
	URL        string  `json:"url"`
	AlbumCover string  `json:"albumCover,omitempty"`
}

// Album is the remote description of an album.
type Album struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Artist      string          `json:"artist"`
	ArtistID    string          `json:"artistId,omitempty"`
	CoverURL    string          `json:"coverUrl,omitempty"`
	MetadataURL string          `json:"metadataUrl,omitempty"`
	ArtistURL   string          `json:"artistUrl,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}

// DownloadedSong is a song persisted for offline playback.
//
// Exactly one payload is attached. Songs downloaded on their own carry a
// store.Blob; songs downloaded as part of an album carry a store.Buffer
// whose MIME type is also mirrored in MimeType.
type DownloadedSong struct {
	ID            string    `json:"id"`
	AlbumID       string    `json:"albumId,omitempty"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	Duration      float64   `json:"duration,omitempty"`
	FileName      string    `json:"fileName,omitempty"`
	AlbumCoverURL string    `json:"albumCover,omitempty"`
	MimeType      string    `json:"mimeType,omitempty"`
	Size          int64     `json:"size"`
	DownloadedAt  time.Time `json:"downloadedAt"`

	Payload store.Payload `json:"-"`
}

// DownloadedAlbum is an album the user asked to keep offline.
//
// TotalTracks records how many songs the album had when it was downloaded,
// not how many were stored successfully.
type DownloadedAlbum struct {
	AlbumID      string    `json:"albumId"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	CoverURL     string    `json:"coverUrl,omitempty"`
	TotalTracks  int       `json:"totalTracks"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// CachedAlbum is an album descriptor cached for offline browsing.
type CachedAlbum struct {
	AlbumID  string          `json:"albumId"`
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cachedAt"`
}

// CachedArtist is an artist descriptor cached for offline browsing.
type CachedArtist struct {
	ArtistID string          `json:"artistId"`
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cachedAt"`
}

// AlbumCover is the cover art of a downloaded album.
type AlbumCover struct {
	AlbumID  string    `json:"albumId"`
	URL      string    `json:"url,omitempty"`
	CachedAt time.Time `json:"cachedAt"`

	Payload store.Payload `json:"-"`
}

// CachedImage is an arbitrary image keyed by its source URL.
type CachedImage struct {
	URL      string    `json:"url"`
	CachedAt time.Time `json:"cachedAt"`

	Payload store.Payload `json:"-"`
}

// ContentType returns the song's payload MIME type, falling back to
// DefaultAudioMimeType.
func (s *DownloadedSong) ContentType() string {
	if s.Payload != nil && s.Payload.MediaType() != "" {
		return s.Payload.MediaType()
	}
	if s.MimeType != "" {
		return s.MimeType
	}
	return DefaultAudioMimeType
}
