package download

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_SetAndGet(t *testing.T) {
	p := NewProgress()

	_, ok := p.Get("song-1")
	assert.False(t, ok)
	assert.Equal(t, StateIdle, p.State("song-1"))

	p.Set("song-1", 40)
	v, ok := p.Get("song-1")
	require.True(t, ok)
	assert.Equal(t, 40, v)
	assert.Equal(t, StateDownloading, p.State("song-1"))

	p.Set("song-1", 250)
	v, _ = p.Get("song-1")
	assert.Equal(t, 100, v)
	assert.Equal(t, StateCompleted, p.State("song-1"))

	p.Set("song-2", -5)
	v, _ = p.Get("song-2")
	assert.Equal(t, 0, v)
}

func TestProgress_Clear(t *testing.T) {
	p := NewProgress()
	p.Set("a", 10)
	p.Clear("a")
	p.Clear("never-set")

	_, ok := p.Get("a")
	assert.False(t, ok)
	assert.Empty(t, p.Keys())
}

func TestProgress_SnapshotIsCopy(t *testing.T) {
	p := NewProgress()
	p.Set("b", 1)
	p.Set(AlbumKey("x"), 50)

	snap := p.Snapshot()
	snap["b"] = 99

	v, _ := p.Get("b")
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"album:x", "b"}, p.Keys())
}

func TestProgress_Subscribe(t *testing.T) {
	p := NewProgress()
	var got []Update
	unsubscribe := p.Subscribe(func(u Update) { got = append(got, u) })

	p.Set("a", 10)
	p.Clear("a")
	p.Clear("a")
	unsubscribe()
	unsubscribe()
	p.Set("a", 20)

	assert.Equal(t, []Update{
		{Key: "a", Percent: 10},
		{Key: "a", Removed: true},
	}, got)
}

func TestProgress_ConcurrentKeys(t *testing.T) {
	p := NewProgress()
	var wg sync.WaitGroup
	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			for i := 0; i <= 100; i++ {
				p.Set(k, i)
			}
		}(k)
	}
	wg.Wait()

	for _, k := range keys {
		v, ok := p.Get(k)
		require.True(t, ok)
		assert.Equal(t, 100, v)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", State(9).String())
}
