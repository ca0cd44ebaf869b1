package eviction

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/playback"
	"github.com/marmos91/tunecache/pkg/store"
	"github.com/marmos91/tunecache/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend *memory.MemoryStore
	catalog *catalog.Catalog
	manager *Manager
}

func newFixture() *fixture {
	backend := memory.New()
	cat := catalog.New(backend)
	return &fixture{backend: backend, catalog: cat, manager: New(cat)}
}

func (f *fixture) seedAlbum(t *testing.T, albumID string, songIDs ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range songIDs {
		require.NoError(t, f.catalog.PutSong(ctx, &catalog.DownloadedSong{
			ID:      id,
			AlbumID: albumID,
			Payload: store.Buffer{MimeType: "audio/mpeg", Data: []byte(id)},
		}))
	}
	require.NoError(t, f.catalog.PutAlbum(ctx, &catalog.DownloadedAlbum{AlbumID: albumID, TotalTracks: len(songIDs)}))
	require.NoError(t, f.catalog.PutCover(ctx, &catalog.AlbumCover{AlbumID: albumID, Payload: store.Blob{ContentType: "image/jpeg", Data: []byte{0xff}}}))
	require.NoError(t, f.catalog.PutCachedAlbum(ctx, &catalog.CachedAlbum{AlbumID: albumID, Data: json.RawMessage(`{}`)}))
}

func TestDeleteItem_MissingIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.True(t, f.manager.DeleteItem(ctx, KindSong, "never-downloaded"))
	assert.True(t, f.manager.DeleteItem(ctx, KindAlbum, "never-downloaded"))
}

func TestDeleteItem_Song(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedAlbum(t, "album-1", "s1", "s2")

	require.True(t, f.manager.DeleteItem(ctx, KindSong, "s1"))
	require.True(t, f.manager.DeleteItem(ctx, KindSong, "s1"))

	_, err := f.catalog.Song(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	remaining, err := f.catalog.AlbumSongs(ctx, "album-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	ok, err := f.catalog.IsAlbumDownloaded(ctx, "album-1")
	require.NoError(t, err)
	assert.True(t, ok, "deleting a song leaves its album alone")
}

func TestDeleteItem_AlbumCascade(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedAlbum(t, "album-1", "s1", "s2", "s3")
	f.seedAlbum(t, "album-2", "t1")

	require.NoError(t, f.catalog.PutSong(ctx, &catalog.DownloadedSong{
		ID:      "loose",
		Payload: store.Blob{ContentType: "audio/mpeg", Data: []byte("x")},
	}))

	require.True(t, f.manager.DeleteItem(ctx, KindAlbum, "album-1"))

	resolver := playback.NewResolver(f.catalog, nil)
	for _, id := range []string{"s1", "s2", "s3"} {
		ref, err := resolver.Resolve(ctx, id)
		assert.Nil(t, ref)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	_, err := f.catalog.Album(ctx, "album-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.catalog.Cover(ctx, "album-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.catalog.CachedAlbum(ctx, "album-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	others, err := f.catalog.AlbumSongs(ctx, "album-2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
	_, err = f.catalog.Song(ctx, "loose")
	assert.NoError(t, err)

	stats, err := f.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Collections[store.DownloadedSongs].Records)
}

func TestDeleteItem_BackendUnavailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedAlbum(t, "album-1", "s1")
	require.NoError(t, f.backend.Close())

	assert.False(t, f.manager.DeleteItem(ctx, KindSong, "s1"))
	assert.False(t, f.manager.DeleteItem(ctx, KindAlbum, "album-1"))

	f.backend.Reopen()
	assert.True(t, f.manager.DeleteItem(ctx, KindAlbum, "album-1"))
}

func TestDeleteItem_InvalidInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.False(t, f.manager.DeleteItem(ctx, KindSong, ""))
	assert.False(t, f.manager.DeleteItem(ctx, Kind(7), "x"))
}

func TestPurge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedAlbum(t, "album-1", "s1", "s2")
	require.NoError(t, f.catalog.PutImage(ctx, &catalog.CachedImage{URL: "https://img/x.png", Payload: store.Blob{Data: []byte{1}}}))

	n, err := f.manager.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	stats, err := f.catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRecords())

	n, err = f.manager.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("album")
	require.NoError(t, err)
	assert.Equal(t, KindAlbum, k)
	assert.Equal(t, "song", KindSong.String())

	_, err = ParseKind("playlist")
	assert.Error(t, err)
}
