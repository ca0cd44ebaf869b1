// Package download fetches remote songs and albums and persists them for
// offline playback.
//
// Single songs either land completely or not at all. Albums are soft-fail
// batches: songs are downloaded one after the other, a failing song is logged
// and skipped, and the album record is written at the end regardless of how
// many songs made it. Callers observe progress through the shared Progress
// map instead of blocking on the call.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/fetch"
	"github.com/marmos91/tunecache/pkg/store"
)

// ErrInvalidRequest is returned for songs or albums missing required fields.
var ErrInvalidRequest = errors.New("invalid download request")

// Orchestrator runs song and album downloads.
//
// Thread Safety:
// Distinct songs and albums may be downloaded concurrently from different
// goroutines. A second request for a key already in flight joins the running
// download and reports its result instead of starting another one. An album
// batch never fans out: its songs are fetched strictly one at a time, which
// bounds peak memory to one song payload.
type Orchestrator struct {
	catalog  *catalog.Catalog
	fetcher  fetch.Fetcher
	progress *Progress
	metrics  Metrics
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*activeDownload
}

type activeDownload struct {
	cancel context.CancelFunc
	done   chan struct{}
	ok     bool

	// waiters counts joined callers, guarded by Orchestrator.mu.
	waiters int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithProgress shares an existing progress map.
func WithProgress(p *Progress) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithMetrics sets the metrics sink. nil keeps the no-op sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator writing through cat and reading through fetcher.
func New(cat *catalog.Catalog, fetcher fetch.Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:  cat,
		fetcher:  fetcher,
		progress: NewProgress(),
		metrics:  noopMetrics{},
		now:      time.Now,
		active:   make(map[string]*activeDownload),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Progress returns the shared progress map.
func (o *Orchestrator) Progress() *Progress {
	return o.progress
}

// Cancel aborts an in-flight download by progress key (song id or AlbumKey).
// Callers that joined it observe the same failure. It reports whether a
// download was found.
func (o *Orchestrator) Cancel(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	a, ok := o.active[key]
	if ok {
		a.cancel()
	}
	return ok
}

// run executes fn as the only download of key. When key is already in
// flight, run waits for that download instead and returns its result, or
// false when ctx ends first.
func (o *Orchestrator) run(ctx context.Context, key string, fn func(ctx context.Context) bool) bool {
	o.mu.Lock()
	if existing, ok := o.active[key]; ok {
		existing.waiters++
		waiters := existing.waiters
		o.mu.Unlock()
		logger.Info("Download %s already in progress, waiting for it (%d waiting)", key, waiters)
		select {
		case <-existing.done:
			return existing.ok
		case <-ctx.Done():
			return false
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	entry := &activeDownload{cancel: cancel, done: make(chan struct{})}
	o.active[key] = entry
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.active, key)
		o.mu.Unlock()
		cancel()
		close(entry.done)
	}()

	entry.ok = fn(runCtx)
	return entry.ok
}

// waiting returns how many callers joined the in-flight download of key.
func (o *Orchestrator) waiting(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if a, ok := o.active[key]; ok {
		return a.waiters
	}
	return 0
}

// ============================================================================
// Single songs
// ============================================================================

// DownloadSong fetches a song and stores it with a self-describing blob
// payload. On success progress[song.ID] is 100 and true is returned. On any
// failure (fetch error, non-success status, write failure, cancellation) the
// progress entry is cleared and false is returned; nothing is written, and a
// copy stored by an earlier download is left untouched.
//
// A call for a song id that is already downloading does not fetch again: it
// waits for the running download and returns its result.
func (o *Orchestrator) DownloadSong(ctx context.Context, song catalog.Song) bool {
	if song.ID == "" {
		logger.Error("Cannot download song without id (title=%q)", song.Title)
		return false
	}

	return o.run(ctx, song.ID, func(ctx context.Context) bool {
		return o.runSong(ctx, song)
	})
}

func (o *Orchestrator) runSong(ctx context.Context, song catalog.Song) bool {
	start := time.Now()
	o.progress.Set(song.ID, 0)

	size, err := o.downloadSong(ctx, song)
	if err != nil {
		o.progress.Clear(song.ID)
		o.metrics.RecordSong("single", "failure", 0, time.Since(start))
		logger.Error("Failed to download song %s (%q): %v", song.ID, song.Title, err)
		return false
	}

	o.progress.Set(song.ID, 100)
	o.metrics.RecordSong("single", "success", size, time.Since(start))
	logger.Info("Downloaded song %s (%q), %s", song.ID, song.Title, humanize.Bytes(uint64(size)))
	return true
}

func (o *Orchestrator) downloadSong(ctx context.Context, song catalog.Song) (int64, error) {
	// ========================================================================
	// Step 1: Fetch the remote asset
	// ========================================================================

	if song.URL == "" {
		return 0, fmt.Errorf("song %s has no audio URL: %w", song.ID, ErrInvalidRequest)
	}

	asset, err := o.fetcher.Fetch(ctx, song.URL)
	if err != nil {
		return 0, err
	}

	// ========================================================================
	// Step 2: Materialize the payload
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	contentType := fetch.ResolveContentType(asset.ContentType, asset.Data, catalog.DefaultAudioMimeType)
	record := &catalog.DownloadedSong{
		ID:            song.ID,
		AlbumID:       song.AlbumID,
		Title:         song.Title,
		Artist:        song.Artist,
		Duration:      song.Duration,
		FileName:      songFileName(song),
		AlbumCoverURL: song.AlbumCover,
		MimeType:      contentType,
		DownloadedAt:  o.now(),
		Payload:       store.Blob{ContentType: contentType, Data: asset.Data},
	}

	// ========================================================================
	// Step 3: Persist record and payload in one write
	// ========================================================================

	if err := o.catalog.PutSong(ctx, record); err != nil {
		return 0, err
	}
	return record.Size, nil
}

// ============================================================================
// Albums
// ============================================================================

// DownloadAlbumDirect downloads an album as a soft-fail batch.
//
// Cover art, album and artist descriptors are cached first on a best-effort
// basis. Songs are then downloaded sequentially, each stored with a raw
// buffer payload and an explicit MIME type; a failing song is logged and
// skipped. Album progress (AlbumKey) never decreases and reaches 100 only
// once every song was attempted. The album record is then written with
// TotalTracks = len(songs) whatever the success count, and read back to
// verify it persisted.
//
// The result is true only when every song was stored. A false result does
// not mean the album is absent: a partially downloaded album is still
// recorded as downloaded. Cancelling ctx stops the batch before the next
// song, clears the album progress and skips the album record.
func (o *Orchestrator) DownloadAlbumDirect(ctx context.Context, album catalog.Album, songs []catalog.Song) bool {
	if album.ID == "" || len(songs) == 0 {
		logger.Error("Invalid album download request: album=%q songs=%d", album.ID, len(songs))
		return false
	}

	key := AlbumKey(album.ID)
	return o.run(ctx, key, func(ctx context.Context) bool {
		return o.runAlbum(ctx, key, album, songs)
	})
}

func (o *Orchestrator) runAlbum(ctx context.Context, key string, album catalog.Album, songs []catalog.Song) bool {
	start := time.Now()
	o.progress.Set(key, 0)
	logger.Info("Starting album download %s (%q) with %d songs", album.ID, album.Title, len(songs))

	// ========================================================================
	// Step 1: Best-effort descriptors and cover art
	// ========================================================================

	o.cacheAlbumAssets(ctx, album)

	// ========================================================================
	// Step 2: Songs, strictly one at a time
	// ========================================================================

	downloaded := 0
	for i, song := range songs {
		if err := ctx.Err(); err != nil {
			o.abortAlbum(key, album.ID, i, len(songs), downloaded, start, err)
			return false
		}

		songStart := time.Now()
		size, err := o.downloadAlbumSong(ctx, album, song)
		if err != nil {
			o.metrics.RecordSong("album", "failure", 0, time.Since(songStart))
			logger.Error("Skipping song %s (%q) of album %s: %v", song.ID, song.Title, album.ID, err)
		} else {
			downloaded++
			o.metrics.RecordSong("album", "success", size, time.Since(songStart))
			logger.Debug("Stored song %s of album %s (%d/%d)", song.ID, album.ID, downloaded, len(songs))
		}

		o.progress.Set(key, albumPercent(downloaded, len(songs)))
	}

	if err := ctx.Err(); err != nil {
		o.abortAlbum(key, album.ID, len(songs), len(songs), downloaded, start, err)
		return false
	}
	o.progress.Set(key, 100)

	// ========================================================================
	// Step 3: Album record, written whatever the success count
	// ========================================================================

	record := &catalog.DownloadedAlbum{
		AlbumID:      album.ID,
		Title:        album.Title,
		Artist:       album.Artist,
		CoverURL:     album.CoverURL,
		TotalTracks:  len(songs),
		DownloadedAt: o.now(),
	}
	if err := o.catalog.PutAlbum(ctx, record); err != nil {
		o.metrics.RecordAlbum("failure", len(songs), downloaded, time.Since(start))
		logger.Error("Failed to store album %s: %v", album.ID, err)
		return false
	}

	// ========================================================================
	// Step 4: Verify the album record persisted
	// ========================================================================

	if _, err := o.catalog.Album(ctx, album.ID); err != nil {
		o.metrics.RecordAlbum("failure", len(songs), downloaded, time.Since(start))
		logger.Error("Album %s not readable after write: %v", album.ID, err)
		return false
	}

	o.logTotals(ctx)

	complete := downloaded == len(songs)
	status := "success"
	if !complete {
		status = "partial"
	}
	o.metrics.RecordAlbum(status, len(songs), downloaded, time.Since(start))
	logger.Info("Album %s (%q) downloaded: %d/%d songs in %s", album.ID, album.Title, downloaded, len(songs), time.Since(start).Round(time.Millisecond))
	return complete
}

// DownloadAlbum downloads an album through DownloadSong, one song at a time.
//
// Unlike DownloadAlbumDirect, songs keep self-describing blob payloads and
// each gets its own progress key next to AlbumKey. No cover or descriptor is
// cached. Album progress follows the stored count; once the album record is
// written the album entry is removed, while the song entries stay at 100.
// The result is true only when every song was stored and the album record
// was written.
func (o *Orchestrator) DownloadAlbum(ctx context.Context, album catalog.Album, songs []catalog.Song) bool {
	if album.ID == "" || len(songs) == 0 {
		logger.Error("Invalid album download request: album=%q songs=%d", album.ID, len(songs))
		return false
	}

	key := AlbumKey(album.ID)
	return o.run(ctx, key, func(ctx context.Context) bool {
		start := time.Now()
		o.progress.Set(key, 0)

		downloaded := 0
		for i, song := range songs {
			if err := ctx.Err(); err != nil {
				o.abortAlbum(key, album.ID, i, len(songs), downloaded, start, err)
				return false
			}
			if song.AlbumID == "" {
				song.AlbumID = album.ID
			}
			if o.DownloadSong(ctx, song) {
				downloaded++
			}
			o.progress.Set(key, albumPercent(downloaded, len(songs)))
		}

		record := &catalog.DownloadedAlbum{
			AlbumID:      album.ID,
			Title:        album.Title,
			Artist:       album.Artist,
			CoverURL:     album.CoverURL,
			TotalTracks:  len(songs),
			DownloadedAt: o.now(),
		}
		err := o.catalog.PutAlbum(ctx, record)
		o.progress.Clear(key)
		if err != nil {
			o.metrics.RecordAlbum("failure", len(songs), downloaded, time.Since(start))
			logger.Error("Failed to store album %s: %v", album.ID, err)
			return false
		}

		complete := downloaded == len(songs)
		status := "success"
		if !complete {
			status = "partial"
		}
		o.metrics.RecordAlbum(status, len(songs), downloaded, time.Since(start))
		logger.Info("Album %s (%q) downloaded song by song: %d/%d", album.ID, album.Title, downloaded, len(songs))
		return complete
	})
}

// abortAlbum ends a cancelled batch: no album record, no progress entry.
func (o *Orchestrator) abortAlbum(key, albumID string, attempted, total, downloaded int, start time.Time, cause error) {
	o.progress.Clear(key)
	o.metrics.RecordAlbum("cancelled", total, downloaded, time.Since(start))
	logger.Warn("Album download %s cancelled after %d/%d songs: %v", albumID, attempted, total, cause)
}

func (o *Orchestrator) downloadAlbumSong(ctx context.Context, album catalog.Album, song catalog.Song) (int64, error) {
	if song.ID == "" {
		return 0, fmt.Errorf("song without id: %w", ErrInvalidRequest)
	}
	if song.URL == "" {
		return 0, fmt.Errorf("song %s has no audio URL: %w", song.ID, ErrInvalidRequest)
	}

	asset, err := o.fetcher.Fetch(ctx, song.URL)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mimeType := fetch.ResolveContentType(asset.ContentType, asset.Data, catalog.DefaultAudioMimeType)
	artist := song.Artist
	if artist == "" {
		artist = album.Artist
	}

	record := &catalog.DownloadedSong{
		ID:            song.ID,
		AlbumID:       album.ID,
		Title:         song.Title,
		Artist:        artist,
		Duration:      song.Duration,
		FileName:      songFileName(song),
		AlbumCoverURL: album.CoverURL,
		MimeType:      mimeType,
		DownloadedAt:  o.now(),
		Payload:       store.Buffer{MimeType: mimeType, Data: asset.Data},
	}
	if err := o.catalog.PutSong(ctx, record); err != nil {
		return 0, err
	}
	return record.Size, nil
}

// albumPercent maps downloaded/total to [0,99]; 100 is reserved for the end
// of the batch.
func albumPercent(downloaded, total int) int {
	if total <= 0 {
		return 0
	}
	pct := (downloaded*100 + total/2) / total
	if pct > 99 {
		pct = 99
	}
	return pct
}

func songFileName(song catalog.Song) string {
	if song.FileName != "" {
		return song.FileName
	}
	title := strings.TrimSpace(song.Title)
	if title == "" {
		title = song.ID
	}
	return title + ".mp3"
}

func (o *Orchestrator) logTotals(ctx context.Context) {
	stats, err := o.catalog.Stats(ctx)
	if err != nil {
		logger.Debug("Could not read storage totals: %v", err)
		return
	}
	songs := stats.Collections[store.DownloadedSongs]
	logger.Info("Offline library: %d songs, %d albums, %s",
		songs.Records,
		stats.Collections[store.DownloadedAlbums].Records,
		humanize.Bytes(uint64(stats.TotalPayloadBytes())))
}

// ============================================================================
// Best-effort caches
// ============================================================================

// cacheAlbumAssets caches descriptors, cover image and cover payload. Every
// failure is logged and swallowed.
func (o *Orchestrator) cacheAlbumAssets(ctx context.Context, album catalog.Album) {
	if err := o.CacheAlbumMetadata(ctx, album); err != nil {
		logger.Warn("Could not cache metadata of album %s: %v", album.ID, err)
	}

	if album.ArtistID != "" || album.Artist != "" {
		if err := o.CacheArtistMetadata(ctx, album); err != nil {
			logger.Warn("Could not cache artist of album %s: %v", album.ID, err)
		}
	}

	if album.CoverURL == "" {
		return
	}
	if err := o.CacheImage(ctx, album.CoverURL); err != nil {
		logger.Warn("Could not cache cover image of album %s: %v", album.ID, err)
	}
	if err := o.storeCover(ctx, album); err != nil {
		logger.Warn("Could not store cover of album %s: %v", album.ID, err)
	}
}

// CacheAlbumMetadata stores the album descriptor. When the album has a
// MetadataURL the remote JSON document is cached, otherwise the album itself.
func (o *Orchestrator) CacheAlbumMetadata(ctx context.Context, album catalog.Album) error {
	data, err := o.descriptor(ctx, album.MetadataURL, album)
	if err != nil {
		return err
	}
	return o.catalog.PutCachedAlbum(ctx, &catalog.CachedAlbum{AlbumID: album.ID, Data: data, CachedAt: o.now()})
}

// CacheArtistMetadata stores the descriptor of the album's artist, keyed by
// ArtistID or, failing that, the artist name.
func (o *Orchestrator) CacheArtistMetadata(ctx context.Context, album catalog.Album) error {
	id := album.ArtistID
	if id == "" {
		id = album.Artist
	}
	if id == "" {
		return fmt.Errorf("album %s has no artist: %w", album.ID, ErrInvalidRequest)
	}

	fallback := map[string]string{"id": id, "name": album.Artist}
	data, err := o.descriptor(ctx, album.ArtistURL, fallback)
	if err != nil {
		return err
	}
	return o.catalog.PutCachedArtist(ctx, &catalog.CachedArtist{ArtistID: id, Data: data, CachedAt: o.now()})
}

// descriptor fetches a JSON document from url, or marshals fallback when url is empty.
func (o *Orchestrator) descriptor(ctx context.Context, url string, fallback any) (json.RawMessage, error) {
	if url == "" {
		data, err := json.Marshal(fallback)
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	asset, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if !json.Valid(asset.Data) {
		return nil, fmt.Errorf("descriptor %s is not valid JSON: %w", url, store.ErrDecode)
	}
	return asset.Data, nil
}

// CacheImage stores the image at url unless it is already cached.
func (o *Orchestrator) CacheImage(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("empty image URL: %w", ErrInvalidRequest)
	}
	if _, err := o.catalog.Image(ctx, url); err == nil {
		return nil
	}

	asset, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	contentType := fetch.ResolveContentType(asset.ContentType, asset.Data, "")
	return o.catalog.PutImage(ctx, &catalog.CachedImage{
		URL:      url,
		CachedAt: o.now(),
		Payload:  store.Blob{ContentType: contentType, Data: asset.Data},
	})
}

// storeCover saves the album cover payload, reusing the cached image when present.
func (o *Orchestrator) storeCover(ctx context.Context, album catalog.Album) error {
	var payload store.Payload
	if img, err := o.catalog.Image(ctx, album.CoverURL); err == nil {
		payload = img.Payload
	} else {
		asset, err := o.fetcher.Fetch(ctx, album.CoverURL)
		if err != nil {
			return err
		}
		contentType := fetch.ResolveContentType(asset.ContentType, asset.Data, "")
		payload = store.Blob{ContentType: contentType, Data: asset.Data}
	}

	return o.catalog.PutCover(ctx, &catalog.AlbumCover{
		AlbumID:  album.ID,
		URL:      album.CoverURL,
		CachedAt: o.now(),
		Payload:  payload,
	})
}
