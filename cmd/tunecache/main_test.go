package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tunecache/pkg/catalog"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
	provider   *httptest.Server
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))

	assets := map[string]string{
		"/songs/1.mp3": "ID3-one",
		"/songs/2.mp3": "ID3-two",
		"/cover.jpg":   "\xff\xd8\xff\xe0cover",
	}
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := assets[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".mp3") {
			w.Header().Set("Content-Type", "audio/mpeg")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(provider.Close)

	configPath := filepath.Join(base, "tunecache.yaml")
	content := fmt.Sprintf(`logging:
  level: ERROR
  output: stderr
storage:
  type: filesystem
  filesystem:
    path: %s
library_cache:
  enabled: true
  path: %s
`, filepath.Join(base, "files"), filepath.Join(base, "library.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	return &cliTestEnv{configPath: configPath, baseDir: base, provider: provider}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDownloadListResolveDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLI(t, env, "download", "song",
		"--id", "s1", "--title", "Intro", "--artist", "Band",
		"--url", env.provider.URL+"/songs/1.mp3")
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded song s1")
	assert.Contains(t, stderr, "s1: 100%")

	out, _, err = runCLI(t, env, "list", "songs")
	require.NoError(t, err)
	assert.Contains(t, out, "s1\tIntro\tBand")
	assert.Contains(t, out, "audio/mpeg")

	target := filepath.Join(env.baseDir, "export.mp3")
	out, _, err = runCLI(t, env, "resolve", "s1", "--output", target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "blob:tunecache/"))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "ID3-one", string(data))

	out, _, err = runCLI(t, env, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "downloaded_songs\t1\t")

	_, _, err = runCLI(t, env, "delete", "song", "s1")
	require.NoError(t, err)

	out, _, err = runCLI(t, env, "list", "songs")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	// Deleting again is a no-op.
	_, _, err = runCLI(t, env, "delete", "song", "s1")
	require.NoError(t, err)
}

func TestDownloadSongFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "download", "song", "--id", "s9", "--url", env.provider.URL+"/missing.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download of song s9 failed")

	_, _, err = runCLI(t, env, "resolve", "s9")
	require.Error(t, err)
}

func TestDownloadSongRequiresURL(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "download", "song", "--id", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--id and --url")
}

func TestDownloadAlbum(t *testing.T) {
	env := setupCLITestEnv(t)

	req := albumRequest{}
	req.Album.ID = "a1"
	req.Album.Title = "First"
	req.Album.Artist = "Band"
	req.Album.CoverURL = env.provider.URL + "/cover.jpg"
	for i, path := range []string{"/songs/1.mp3", "/songs/2.mp3", "/songs/404.mp3"} {
		req.Songs = append(req.Songs, songFixture(fmt.Sprintf("s%d", i+1), env.provider.URL+path))
	}
	albumFile := filepath.Join(env.baseDir, "album.json")
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(albumFile, raw, 0o644))

	out, stderr, err := runCLI(t, env, "download", "album", "--file", albumFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded album a1 (2/3 songs)")
	assert.Contains(t, stderr, "album:a1: 100%")

	out, _, err = runCLI(t, env, "list", "albums")
	require.NoError(t, err)
	assert.Contains(t, out, "a1\tFirst\tBand\t2/3")

	out, _, err = runCLI(t, env, "list", "songs", "--album", "a1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, _, err = runCLI(t, env, "resolve", "a1", "--cover")
	require.NoError(t, err)
	assert.Contains(t, out, "image/jpeg")

	_, _, err = runCLI(t, env, "delete", "album", "a1")
	require.NoError(t, err)

	out, _, err = runCLI(t, env, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "downloaded_songs\t0\t")
	assert.Contains(t, out, "downloaded_albums\t0\t")
	assert.Contains(t, out, "album_covers\t0\t")
}

func TestDownloadAlbumPerSong(t *testing.T) {
	env := setupCLITestEnv(t)

	req := albumRequest{}
	req.Album.ID = "a2"
	req.Album.Title = "Second"
	for i, path := range []string{"/songs/1.mp3", "/songs/404.mp3"} {
		req.Songs = append(req.Songs, songFixture(fmt.Sprintf("p%d", i+1), env.provider.URL+path))
	}
	albumFile := filepath.Join(env.baseDir, "album.json")
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(albumFile, raw, 0o644))

	out, _, err := runCLI(t, env, "download", "album", "--per-song", "--file", albumFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded album a2 (1/2 songs)")

	out, _, err = runCLI(t, env, "list", "songs", "--album", "a2")
	require.NoError(t, err)
	assert.Contains(t, out, "p1\t")

	_, _, err = runCLI(t, env, "resolve", "a2", "--cover")
	assert.Error(t, err, "per-song downloads cache no cover")
}

func TestPurge(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "download", "song", "--id", "s1", "--url", env.provider.URL+"/songs/1.mp3")
	require.NoError(t, err)

	_, _, err = runCLI(t, env, "purge")
	require.Error(t, err)

	out, _, err := runCLI(t, env, "purge", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 records")
}

func TestDeleteUnknownKind(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "delete", "playlist", "p1")
	require.Error(t, err)
}

func TestLibraryCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "library", "load")
	require.Error(t, err)

	listing := filepath.Join(env.baseDir, "library.json")
	require.NoError(t, os.WriteFile(listing, []byte(`{"albums":[{"id":"a1"}]}`), 0o644))

	_, _, err = runCLI(t, env, "library", "save", "--file", listing)
	require.NoError(t, err)

	out, stderr, err := runCLI(t, env, "library", "load")
	require.NoError(t, err)
	assert.JSONEq(t, `{"albums":[{"id":"a1"}]}`, strings.TrimSpace(out))
	assert.Contains(t, stderr, "Snapshot saved")

	_, _, err = runCLI(t, env, "library", "clear")
	require.NoError(t, err)

	_, _, err = runCLI(t, env, "library", "load")
	require.Error(t, err)
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(env.baseDir, "generated", "config.toml")
	out, _, err := runCLI(t, env, "config", "init", "--path", target, "--format", "toml")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote configuration to "+target)

	_, _, err = runCLI(t, env, "config", "init", "--path", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, _, err = runCLI(t, env, "config", "validate", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK")

	_, _, err = runCLI(t, env, "config", "init", "--format", "ini")
	require.Error(t, err)
}

func TestGC(t *testing.T) {
	env := setupCLITestEnv(t)

	req := albumRequest{}
	req.Album.ID = "a1"
	req.Album.CoverURL = env.provider.URL + "/cover.jpg"
	req.Songs = []catalog.Song{songFixture("s1", env.provider.URL+"/songs/1.mp3")}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	albumFile := filepath.Join(env.baseDir, "album.json")
	require.NoError(t, os.WriteFile(albumFile, raw, 0o644))

	_, _, err = runCLI(t, env, "download", "album", "--file", albumFile)
	require.NoError(t, err)

	out, _, err := runCLI(t, env, "gc")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 orphaned covers")
}
