package playback

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tunecache/internal/logger"
)

// URLPrefix prefixes every minted reference URL.
const URLPrefix = "blob:tunecache/"

// ErrRevoked is returned when opening a reference that was released or never minted.
var ErrRevoked = errors.New("reference revoked")

// Ref is a process-local, revocable handle to stored bytes.
type Ref struct {
	URL      string
	ItemID   string
	MimeType string
	Size     int64
}

type entry struct {
	ref     Ref
	item    string
	data    []byte
	count   int
	created time.Time
}

// Registry owns every minted reference.
//
// Resolving an item that already has a live reference with the same content
// returns that reference and bumps its count. A reference is revoked when its
// count drops to zero or on ReleaseAll; nothing is revoked implicitly, so an
// unreleased reference keeps its bytes alive for the life of the registry.
type Registry struct {
	mu     sync.Mutex
	refs   map[string]*entry
	byItem map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		refs:   make(map[string]*entry),
		byItem: make(map[string]string),
	}
}

// mint returns a reference for item, reusing the live one when its content
// is unchanged.
func (r *Registry) mint(item, itemID, mimeType string, data []byte) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	if url, ok := r.byItem[item]; ok {
		if e := r.refs[url]; e != nil && e.ref.MimeType == mimeType && bytes.Equal(e.data, data) {
			e.count++
			return e.ref
		}
	}

	ref := Ref{
		URL:      URLPrefix + uuid.NewString(),
		ItemID:   itemID,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}
	r.refs[ref.URL] = &entry{ref: ref, item: item, data: data, count: 1, created: time.Now()}
	r.byItem[item] = ref.URL

	logger.Debug("Minted %s for %s (%d bytes, %s)", ref.URL, item, ref.Size, mimeType)
	return ref
}

// Release drops one hold on url and revokes it at zero. It reports whether
// url was live.
func (r *Registry) Release(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.refs[url]
	if !ok {
		return false
	}
	e.count--
	if e.count <= 0 {
		r.revokeLocked(url, e)
	}
	return true
}

// ReleaseAll revokes every reference regardless of its count and returns how
// many were revoked.
func (r *Registry) ReleaseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.refs)
	for url, e := range r.refs {
		r.revokeLocked(url, e)
	}
	if n > 0 {
		logger.Debug("Revoked %d references", n)
	}
	return n
}

func (r *Registry) revokeLocked(url string, e *entry) {
	delete(r.refs, url)
	if r.byItem[e.item] == url {
		delete(r.byItem, e.item)
	}
}

// Len returns the number of live references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}

// Live returns the live references, oldest first.
func (r *Registry) Live() []Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*entry, 0, len(r.refs))
	for _, e := range r.refs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].created.Equal(entries[j].created) {
			return entries[i].created.Before(entries[j].created)
		}
		return entries[i].ref.URL < entries[j].ref.URL
	})

	out := make([]Ref, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ref)
	}
	return out
}

// Open returns a reader over the bytes behind url.
func (r *Registry) Open(url string) (io.ReadSeeker, *Ref, error) {
	r.mu.Lock()
	e, ok := r.refs[url]
	r.mu.Unlock()

	if !ok {
		return nil, nil, ErrRevoked
	}
	ref := e.ref
	return bytes.NewReader(e.data), &ref, nil
}

// ServeHTTP serves /<id> for the reference blob:tunecache/<id>, honoring
// range requests.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(req.URL.Path, "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, req)
		return
	}

	r.mu.Lock()
	e, ok := r.refs[URLPrefix+id]
	r.mu.Unlock()
	if !ok {
		http.NotFound(w, req)
		return
	}

	if e.ref.MimeType != "" {
		w.Header().Set("Content-Type", e.ref.MimeType)
	}
	http.ServeContent(w, req, "", e.created, bytes.NewReader(e.data))
}
