package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/pkg/catalog"
	"github.com/marmos91/tunecache/pkg/download"
	"github.com/marmos91/tunecache/pkg/eviction"
	"github.com/marmos91/tunecache/pkg/playback"
	"github.com/marmos91/tunecache/pkg/store"
)

// refResponse describes a minted reference. Path is where serve exposes it.
type refResponse struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// albumRefsResponse describes the references minted for an album.
type albumRefsResponse struct {
	AlbumID     string        `json:"albumId"`
	TotalTracks int           `json:"totalTracks"`
	Songs       []refResponse `json:"songs"`
	Cover       *refResponse  `json:"cover,omitempty"`
	Skipped     []string      `json:"skipped,omitempty"`
}

// progressEntry is one item of GET /progress.
type progressEntry struct {
	Key     string `json:"key"`
	Percent int    `json:"percent"`
	State   string `json:"state"`
}

// api is the HTTP surface of `tunecache serve`.
//
//	GET    /refs                        list live references
//	GET    /refs/{id}                   stream a minted reference (range requests supported)
//	DELETE /refs/{id}                   release a reference
//	POST   /songs/{id}/resolve          mint a reference for a downloaded song
//	POST   /albums/{id}/resolve         mint references for every stored song of an album and its cover
//	POST   /covers/{id}/resolve         mint a reference for an album cover
//	POST   /images/resolve?url=...      mint a reference for a cached image
//	POST   /downloads/songs             start a song download (catalog.Song JSON)
//	POST   /downloads/albums            start an album download ({"album":..., "songs":[...]})
//	DELETE /downloads/{key}             cancel an in-flight download
//	GET    /progress                    download progress, sorted by key
//	DELETE /items/{kind}/{id}           delete a song or an album
//	GET    /healthz                     storage backend health
type api struct {
	backend      store.Backend
	resolver     *playback.Resolver
	orchestrator *download.Orchestrator
	evictor      *eviction.Manager

	// downloads started over HTTP run on baseCtx and are tracked by wg.
	baseCtx context.Context
	wg      sync.WaitGroup
}

func newAPI(ctx context.Context, backend store.Backend, cat *catalog.Catalog, orchestrator *download.Orchestrator) *api {
	return &api{
		backend:      backend,
		resolver:     playback.NewResolver(cat, nil),
		orchestrator: orchestrator,
		evictor:      eviction.New(cat),
		baseCtx:      ctx,
	}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /refs", a.handleListRefs)
	mux.Handle("GET /refs/{id}", http.StripPrefix("/refs", a.resolver.Registry()))
	mux.HandleFunc("DELETE /refs/{id}", a.handleRelease)
	mux.HandleFunc("POST /songs/{id}/resolve", a.handleResolveSong)
	mux.HandleFunc("POST /albums/{id}/resolve", a.handleResolveAlbum)
	mux.HandleFunc("POST /covers/{id}/resolve", a.handleResolveCover)
	mux.HandleFunc("POST /images/resolve", a.handleResolveImage)
	mux.HandleFunc("POST /downloads/songs", a.handleDownloadSong)
	mux.HandleFunc("POST /downloads/albums", a.handleDownloadAlbum)
	mux.HandleFunc("DELETE /downloads/{key}", a.handleCancel)
	mux.HandleFunc("GET /progress", a.handleProgress)
	mux.HandleFunc("DELETE /items/{kind}/{id}", a.handleDelete)
	mux.HandleFunc("GET /healthz", a.handleHealth)

	return mux
}

// wait blocks until every background download has returned.
func (a *api) wait() {
	a.wg.Wait()
}

// shutdown releases every reference still held by clients.
func (a *api) shutdown() {
	if n := a.resolver.Registry().ReleaseAll(); n > 0 {
		logger.Info("Released %d playback references", n)
	}
}

func (a *api) handleRelease(w http.ResponseWriter, r *http.Request) {
	if !a.resolver.Release(playback.URLPrefix + r.PathValue("id")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleResolveSong(w http.ResponseWriter, r *http.Request) {
	ref, err := a.resolver.Resolve(r.Context(), r.PathValue("id"))
	writeRef(w, ref, err)
}

func (a *api) handleListRefs(w http.ResponseWriter, r *http.Request) {
	live := a.resolver.Registry().Live()
	out := make([]refResponse, 0, len(live))
	for i := range live {
		out = append(out, toRefResponse(&live[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleResolveAlbum(w http.ResponseWriter, r *http.Request) {
	refs, err := a.resolver.ResolveAlbum(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "album not downloaded")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := albumRefsResponse{
		AlbumID:     refs.AlbumID,
		TotalTracks: refs.TotalTracks,
		Songs:       make([]refResponse, 0, len(refs.Songs)),
		Skipped:     refs.Skipped,
	}
	for _, ref := range refs.Songs {
		resp.Songs = append(resp.Songs, toRefResponse(ref))
	}
	if refs.Cover != nil {
		cover := toRefResponse(refs.Cover)
		resp.Cover = &cover
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleResolveCover(w http.ResponseWriter, r *http.Request) {
	ref, err := a.resolver.ResolveCover(r.Context(), r.PathValue("id"))
	writeRef(w, ref, err)
}

func (a *api) handleResolveImage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	ref, err := a.resolver.ResolveImage(r.Context(), url)
	writeRef(w, ref, err)
}

func (a *api) handleDownloadSong(w http.ResponseWriter, r *http.Request) {
	var song catalog.Song
	if err := json.NewDecoder(r.Body).Decode(&song); err != nil {
		writeError(w, http.StatusBadRequest, "invalid song: "+err.Error())
		return
	}
	if song.ID == "" || song.URL == "" {
		writeError(w, http.StatusBadRequest, "song id and url are required")
		return
	}

	a.start(func(ctx context.Context) {
		a.orchestrator.DownloadSong(ctx, song)
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"key": song.ID})
}

func (a *api) handleDownloadAlbum(w http.ResponseWriter, r *http.Request) {
	var req albumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid album: "+err.Error())
		return
	}
	if req.Album.ID == "" || len(req.Songs) == 0 {
		writeError(w, http.StatusBadRequest, "album id and at least one song are required")
		return
	}

	a.start(func(ctx context.Context) {
		a.orchestrator.DownloadAlbumDirect(ctx, req.Album, req.Songs)
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"key": download.AlbumKey(req.Album.ID)})
}

func (a *api) start(fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.baseCtx)
	}()
}

func (a *api) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !a.orchestrator.Cancel(r.PathValue("key")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress := a.orchestrator.Progress()
	keys := progress.Keys()

	out := make([]progressEntry, 0, len(keys))
	for _, key := range keys {
		percent, ok := progress.Get(key)
		if !ok {
			continue
		}
		out = append(out, progressEntry{Key: key, Percent: percent, State: progress.State(key).String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := eviction.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !a.evictor.DeleteItem(r.Context(), kind, r.PathValue("id")) {
		writeError(w, http.StatusServiceUnavailable, "delete incomplete, retry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.backend.Healthcheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRef(w http.ResponseWriter, ref *playback.Ref, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not downloaded")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, toRefResponse(ref))
	}
}

func toRefResponse(ref *playback.Ref) refResponse {
	return refResponse{
		URL:      ref.URL,
		Path:     "/refs/" + strings.TrimPrefix(ref.URL, playback.URLPrefix),
		MimeType: ref.MimeType,
		Size:     ref.Size,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response: %v", err)
	}
}
