package badger

import (
	"bytes"
	"context"
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
	storetesting "github.com/marmos91/tunecache/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBadgerStore runs the complete Backend test suite
// against the BadgerStore implementation.
func TestBadgerStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Backend {
			s, err := NewBadgerStore(context.Background(), BadgerStoreConfig{Path: t.TempDir()})
			if err != nil {
				t.Fatalf("Failed to create BadgerStore: %v", err)
			}
			return s
		},
	}

	suite.Run(t)
}

func TestBadgerStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBadgerStore(ctx, BadgerStoreConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, store.DownloadedSongs, "song-1", &store.Record{
		Fields:  map[string]string{"albumId": "album-1"},
		Payload: store.Buffer{MimeType: "audio/mpeg", Data: []byte("frames")},
	}))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(ctx, BadgerStoreConfig{Path: dir})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	rec, err := s.Get(ctx, store.DownloadedSongs, "song-1")
	require.NoError(t, err)
	assert.Equal(t, "album-1", rec.Field("albumId"))
	assert.Equal(t, []byte("frames"), rec.Payload.Bytes())
}

func TestBadgerStore_SongSizedPayloads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large payload test in short mode")
	}

	ctx := context.Background()
	s, err := NewBadgerStore(ctx, BadgerStoreConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	for _, size := range []int{0, 1, 10<<20 + 1, 40 << 20} {
		data := bytes.Repeat([]byte{0xA5}, size)
		err := s.Put(ctx, store.DownloadedSongs, "k", &store.Record{
			Payload: store.Buffer{MimeType: "audio/mpeg", Data: data},
		})
		require.NoError(t, err, "size %d", size)

		rec, err := s.Get(ctx, store.DownloadedSongs, "k")
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, size, len(rec.Payload.Bytes()), "size %d", size)
	}
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerStore(context.Background(), BadgerStoreConfig{})
	assert.Error(t, err)
}
