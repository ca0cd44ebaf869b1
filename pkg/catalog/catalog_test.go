package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marmos91/tunecache/pkg/store"
	"github.com/marmos91/tunecache/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() *Catalog {
	return New(memory.New())
}

func TestPutSong_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()

	song := &DownloadedSong{
		ID:      "song-1",
		AlbumID: "album-1",
		Title:   "Intro",
		Artist:  "Band",
		Payload: store.Blob{ContentType: "audio/mpeg", Data: []byte("frames")},
	}
	require.NoError(t, c.PutSong(ctx, song))

	got, err := c.Song(ctx, "song-1")
	require.NoError(t, err)
	assert.Equal(t, "Intro", got.Title)
	assert.Equal(t, int64(6), got.Size)
	assert.False(t, got.DownloadedAt.IsZero())
	assert.Equal(t, "audio/mpeg", got.ContentType())
	assert.Equal(t, []byte("frames"), got.Payload.Bytes())
}

func TestPutSong_RequiresPayload(t *testing.T) {
	err := newTestCatalog().PutSong(context.Background(), &DownloadedSong{ID: "s"})
	assert.Error(t, err)
}

func TestSong_NotFound(t *testing.T) {
	_, err := newTestCatalog().Song(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSong_MissingPayloadIsDecodeError(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	require.NoError(t, c.Backend().Put(ctx, store.DownloadedSongs, "s", &store.Record{Value: []byte(`{"title":"x"}`)}))

	_, err := c.Song(ctx, "s")
	assert.ErrorIs(t, err, store.ErrDecode)
}

func TestAlbumSongs(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"s2", "s1", "s3"} {
		albumID := "album-1"
		if id == "s3" {
			albumID = "album-2"
		}
		require.NoError(t, c.PutSong(ctx, &DownloadedSong{
			ID:           id,
			AlbumID:      albumID,
			DownloadedAt: base.Add(time.Duration(i) * time.Minute),
			Payload:      store.Buffer{MimeType: "audio/mpeg", Data: []byte(id)},
		}))
	}

	songs, err := c.AlbumSongs(ctx, "album-1")
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "s2", songs[0].ID)
	assert.Equal(t, "s1", songs[1].ID)

	all, err := c.Songs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := c.DeleteAlbumSongs(ctx, "album-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAlbum_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()

	ok, err := c.IsAlbumDownloaded(ctx, "album-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutAlbum(ctx, &DownloadedAlbum{AlbumID: "album-1", Title: "Debut", TotalTracks: 3}))

	ok, err = c.IsAlbumDownloaded(ctx, "album-1")
	require.NoError(t, err)
	assert.True(t, ok)

	album, err := c.Album(ctx, "album-1")
	require.NoError(t, err)
	assert.Equal(t, 3, album.TotalTracks)

	albums, err := c.Albums(ctx)
	require.NoError(t, err)
	assert.Len(t, albums, 1)
}

func TestCoverAndImage(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()

	require.NoError(t, c.PutCover(ctx, &AlbumCover{AlbumID: "a", Payload: store.Blob{ContentType: "image/jpeg", Data: []byte{0xff}}}))
	cover, err := c.Cover(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", cover.Payload.MediaType())

	url := "https://img.example.com/a.png"
	require.NoError(t, c.PutImage(ctx, &CachedImage{URL: url, Payload: store.Blob{ContentType: "image/png", Data: []byte{0x89}}}))
	img, err := c.Image(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, url, img.URL)
	assert.Equal(t, []byte{0x89}, img.Payload.Bytes())
}

func TestCachedDescriptors(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()

	require.NoError(t, c.PutCachedAlbum(ctx, &CachedAlbum{AlbumID: "a", Data: json.RawMessage(`{"title":"Debut"}`)}))
	require.NoError(t, c.PutCachedArtist(ctx, &CachedArtist{ArtistID: "r", Data: json.RawMessage(`{"name":"Band"}`)}))

	album, err := c.CachedAlbum(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Debut"}`, string(album.Data))

	artist, err := c.CachedArtist(ctx, "r")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Band"}`, string(artist.Data))

	keys, err := c.Keys(ctx, store.CachedAlbums)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}
