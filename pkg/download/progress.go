package download

import (
	"sort"
	"sync"
)

// State is the lifecycle state of a tracked item.
type State int

const (
	// StateIdle means the item has no progress entry.
	StateIdle State = iota

	// StateDownloading means the item is in flight (0..99 percent).
	StateDownloading

	// StateCompleted means the item reached 100 percent.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Update is delivered to subscribers on every progress change.
type Update struct {
	Key     string
	Percent int

	// Removed is true when the entry was cleared (failure or reset).
	Removed bool
}

// Progress is the shared, item-keyed download progress map.
//
// Keys are song ids, or AlbumKey(albumID) for album batches. Writes for
// different keys never interfere; readers get a consistent snapshot of the
// whole map at one instant but an album's entry may lag its songs.
type Progress struct {
	mu      sync.RWMutex
	entries map[string]int
	subs    map[int]func(Update)
	nextSub int
}

// NewProgress creates an empty progress map.
func NewProgress() *Progress {
	return &Progress{
		entries: make(map[string]int),
		subs:    make(map[int]func(Update)),
	}
}

// AlbumKey returns the progress key of an album batch.
func AlbumKey(albumID string) string {
	return "album:" + albumID
}

// Set records percent for key, clamped to [0,100].
func (p *Progress) Set(key string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	p.mu.Lock()
	p.entries[key] = percent
	subs := p.subscribersLocked()
	p.mu.Unlock()

	notify(subs, Update{Key: key, Percent: percent})
}

// Clear removes the entry for key. Clearing a missing key is a no-op.
func (p *Progress) Clear(key string) {
	p.mu.Lock()
	_, existed := p.entries[key]
	delete(p.entries, key)
	subs := p.subscribersLocked()
	p.mu.Unlock()

	if existed {
		notify(subs, Update{Key: key, Removed: true})
	}
}

// Get returns the percent recorded for key.
func (p *Progress) Get(key string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.entries[key]
	return v, ok
}

// State derives the lifecycle state of key.
func (p *Progress) State(key string) State {
	v, ok := p.Get(key)
	switch {
	case !ok:
		return StateIdle
	case v >= 100:
		return StateCompleted
	default:
		return StateDownloading
	}
}

// Snapshot returns a copy of the whole map.
func (p *Progress) Snapshot() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]int, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out
}

// Keys returns the tracked keys in sorted order.
func (p *Progress) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers fn for every subsequent update and returns a function
// that unregisters it. fn runs on the writer's goroutine and must not block.
func (p *Progress) Subscribe(fn func(Update)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Progress) subscribersLocked() []func(Update) {
	if len(p.subs) == 0 {
		return nil
	}
	out := make([]func(Update), 0, len(p.subs))
	for _, fn := range p.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Update), u Update) {
	for _, fn := range subs {
		fn(u)
	}
}
