//go:build integration

package badger_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/config"
	"github.com/marmos91/tunecache/pkg/download"
	"github.com/marmos91/tunecache/pkg/eviction"
	"github.com/marmos91/tunecache/pkg/fetch"
	"github.com/marmos91/tunecache/pkg/playback"
	"github.com/marmos91/tunecache/pkg/store"
)

// provider serves deterministic audio for any URL.
var provider = fetch.FetcherFunc(func(ctx context.Context, url string) (*fetch.Asset, error) {
	return &fetch.Asset{URL: url, ContentType: "audio/mpeg", Data: []byte("audio:" + url)}, nil
})

// TestBadgerPersistence_Integration verifies that downloads survive a
// restart of the embedded database.
//
// Prerequisites:
//   - None (BadgerDB is embedded, no external services needed)
//   - Run with: go test -tags=integration ./test/integration/badger/...
func TestBadgerPersistence_Integration(t *testing.T) {
	ctx := context.Background()

	storage := &config.StorageConfig{
		Type:   "badger",
		Badger: map[string]any{"path": filepath.Join(t.TempDir(), "badger")},
	}

	open := func(t *testing.T) (*store.Lazy, *catalog.Catalog) {
		t.Helper()
		backend, err := config.CreateBackend(ctx, storage)
		if err != nil {
			t.Fatalf("Failed to create backend: %v", err)
		}
		return backend, catalog.New(backend)
	}

	t.Run("DownloadThenRestart", func(t *testing.T) {
		backend, cat := open(t)
		orchestrator := download.New(cat, provider)

		songs := make([]catalog.Song, 0, 5)
		for i := 1; i <= 5; i++ {
			songs = append(songs, catalog.Song{
				ID:  fmt.Sprintf("a1-%d", i),
				URL: fmt.Sprintf("https://cdn.example.com/a1/%d.mp3", i),
			})
		}
		if !orchestrator.DownloadAlbumDirect(ctx, catalog.Album{ID: "a1", Title: "First", Artist: "Band"}, songs) {
			t.Fatal("Expected album download to succeed")
		}
		if !orchestrator.DownloadSong(ctx, catalog.Song{ID: "single", URL: "https://cdn.example.com/single.mp3"}) {
			t.Fatal("Expected song download to succeed")
		}

		if err := backend.Close(); err != nil {
			t.Fatalf("Failed to close backend: %v", err)
		}
	})

	t.Run("ReadAfterRestart", func(t *testing.T) {
		backend, cat := open(t)
		defer backend.Close()

		album, err := cat.Album(ctx, "a1")
		if err != nil {
			t.Fatalf("Album not persisted: %v", err)
		}
		if album.TotalTracks != 5 {
			t.Errorf("Expected 5 total tracks, got %d", album.TotalTracks)
		}

		resolver := playback.NewResolver(cat, nil)
		ref, err := resolver.Resolve(ctx, "a1-3")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		r, _, err := resolver.Registry().Open(ref.URL)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		got, _ := io.ReadAll(r)
		if want := "audio:https://cdn.example.com/a1/3.mp3"; string(got) != want {
			t.Errorf("Resolved %q, want %q", got, want)
		}
	})

	t.Run("CascadeAfterRestart", func(t *testing.T) {
		backend, cat := open(t)
		defer backend.Close()

		if !eviction.New(cat).DeleteItem(ctx, eviction.KindAlbum, "a1") {
			t.Fatal("Expected album delete to succeed")
		}

		songs, err := cat.Songs(ctx)
		if err != nil {
			t.Fatalf("Songs failed: %v", err)
		}
		if len(songs) != 1 || songs[0].ID != "single" {
			t.Errorf("Expected only the loose song to remain, got %d songs", len(songs))
		}
		if _, err := cat.Album(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected album to be gone, got %v", err)
		}
	})
}
