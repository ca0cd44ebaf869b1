package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/tunecache/pkg/fetch"
	"github.com/marmos91/tunecache/pkg/store"
)

func TestCreateBackend_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &StorageConfig{
		Type:   "badger",
		Badger: map[string]any{"path": t.TempDir(), "block_cache_size_mb": 8},
	}

	backend, err := CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create badger backend: %v", err)
	}
	defer func() { _ = backend.Close() }()

	if backend.Name() != "badger" {
		t.Errorf("Expected backend name 'badger', got %q", backend.Name())
	}
	if err := backend.Healthcheck(ctx); err != nil {
		t.Fatalf("Healthcheck failed: %v", err)
	}
}

func TestCreateBackend_Filesystem(t *testing.T) {
	ctx := context.Background()
	cfg := &StorageConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": filepath.Join(t.TempDir(), "sandbox")},
	}

	backend, err := CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create filesystem backend: %v", err)
	}
	defer func() { _ = backend.Close() }()

	rec := &store.Record{Value: []byte(`{}`), Payload: store.Blob{ContentType: "audio/mpeg", Data: []byte("x")}}
	if err := backend.Put(ctx, store.DownloadedSongs, "s1", rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := backend.Get(ctx, store.DownloadedSongs, "s1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestCreateBackend_MissingPath(t *testing.T) {
	ctx := context.Background()

	_, err := CreateBackend(ctx, &StorageConfig{Type: "filesystem", Filesystem: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}

	_, err = CreateBackend(ctx, &StorageConfig{Type: "badger", Badger: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateBackend_MemoryKeepsRecordsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	backend, err := CreateBackend(ctx, &StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory backend: %v", err)
	}

	if err := backend.Put(ctx, store.DownloadedAlbums, "a", &store.Record{Value: []byte(`{}`)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := backend.Get(ctx, store.DownloadedAlbums, "a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestCreateBackend_BadgerInMemoryRejected(t *testing.T) {
	cfg := &StorageConfig{Type: "badger", Badger: map[string]any{"in_memory": true}}

	_, err := CreateBackend(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "in_memory is not supported") {
		t.Errorf("Expected in_memory rejection, got: %v", err)
	}
}

func TestCreateBackend_LargePayloads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large payload test in short mode")
	}

	ctx := context.Background()
	configs := map[string]*StorageConfig{
		"memory": {Type: "memory"},
		"badger": {Type: "badger", Badger: map[string]any{"path": t.TempDir()}},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			backend, err := CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("Failed to create backend: %v", err)
			}
			defer func() { _ = backend.Close() }()

			data := make([]byte, 10<<20+1)
			rec := &store.Record{Payload: store.Buffer{MimeType: "audio/mpeg", Data: data}}
			if err := backend.Put(ctx, store.DownloadedSongs, "big", rec); err != nil {
				t.Fatalf("Put of %d bytes failed: %v", len(data), err)
			}
			got, err := backend.Get(ctx, store.DownloadedSongs, "big")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if len(got.Payload.Bytes()) != len(data) {
				t.Errorf("Expected %d payload bytes, got %d", len(data), len(got.Payload.Bytes()))
			}
		})
	}
}

func TestCreateBackend_UnknownType(t *testing.T) {
	_, err := CreateBackend(context.Background(), &StorageConfig{Type: "indexeddb"})
	if err == nil {
		t.Fatal("Expected error for unknown storage type")
	}
}

func TestCreateBackend_InvalidOptions(t *testing.T) {
	cfg := &StorageConfig{
		Type:   "badger",
		Badger: map[string]any{"path": []int{1, 2}},
	}
	if _, err := CreateBackend(context.Background(), cfg); err == nil {
		t.Fatal("Expected decode error for invalid badger options")
	}
}

func TestCreateFetcher_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "tunecache-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	cfg := GetDefaultConfig()
	cfg.Fetch.UserAgent = "tunecache-test"

	f, err := CreateFetcher(context.Background(), &cfg.Fetch)
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	asset, err := f.Fetch(context.Background(), srv.URL+"/song.mp3")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(asset.Data) != "payload" {
		t.Errorf("Unexpected payload %q", asset.Data)
	}

	_, err = f.Fetch(context.Background(), "s3://bucket/key")
	if !errors.Is(err, fetch.ErrUnsupportedScheme) {
		t.Errorf("Expected unsupported scheme while s3 is disabled, got: %v", err)
	}
}

func TestCreateFetcher_S3(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Fetch.S3 = map[string]any{
		"enabled":           true,
		"region":            "us-east-1",
		"endpoint":          "http://127.0.0.1:1",
		"access_key_id":     "test",
		"secret_access_key": "test",
		"max_retries":       1,
	}

	f, err := CreateFetcher(context.Background(), &cfg.Fetch)
	if err != nil {
		t.Fatalf("Failed to create fetcher with s3: %v", err)
	}

	_, err = f.Fetch(context.Background(), "s3://bucket/key")
	if errors.Is(err, fetch.ErrUnsupportedScheme) {
		t.Fatalf("Expected s3 scheme to be routed, got: %v", err)
	}
	if !errors.Is(err, fetch.ErrNetworkFetch) {
		t.Errorf("Expected network fetch error against an unreachable endpoint, got: %v", err)
	}
}

func TestCreateLibraryCache(t *testing.T) {
	cache, err := CreateLibraryCache(&LibraryCacheConfig{Enabled: false})
	if err != nil || cache != nil {
		t.Fatalf("Expected nil cache when disabled, got %v, %v", cache, err)
	}

	cache, err = CreateLibraryCache(&LibraryCacheConfig{
		Enabled: true,
		Path:    filepath.Join(t.TempDir(), "library.db"),
		Version: "1.0",
	})
	if err != nil {
		t.Fatalf("Failed to open library cache: %v", err)
	}
	defer func() { _ = cache.Close() }()

	if cache.Has() {
		t.Error("Expected empty library cache")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig(), nil)
	if result.Server != nil || result.Download != nil {
		t.Error("Expected nil components with metrics disabled")
	}
}

func TestCreateFetcher_RateLimit(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Fetch.RateLimit = RateLimitConfig{RequestsPerSecond: 2, Burst: 1}

	f, err := CreateFetcher(context.Background(), &cfg.Fetch)
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}
	if _, ok := f.(*fetch.RateLimited); !ok {
		t.Errorf("Expected a rate limited fetcher, got %T", f)
	}

	cfg.Fetch.RateLimit.RequestsPerSecond = 0
	f, err = CreateFetcher(context.Background(), &cfg.Fetch)
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}
	if _, ok := f.(*fetch.RateLimited); ok {
		t.Error("Expected no rate limiting with a zero rate")
	}
}
