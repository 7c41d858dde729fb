package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedCache_EvictsOldestBeyondBound(t *testing.T) {
	clock := time.Unix(1000, 0)
	cache := newBoundedCache(3, time.Hour)
	cache.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	cache.Put("a", &cachedResponse{Status: 200})
	cache.Put("b", &cachedResponse{Status: 200})
	cache.Put("c", &cachedResponse{Status: 200})
	cache.Put("d", &cachedResponse{Status: 200})

	assert.Equal(t, 3, cache.Len())

	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = cache.Get("d")
	assert.True(t, ok)
}

func TestBoundedCache_ExpiresByAge(t *testing.T) {
	clock := time.Unix(1000, 0)
	cache := newBoundedCache(10, time.Minute)
	cache.now = func() time.Time { return clock }

	cache.Put("stale", &cachedResponse{Status: 200, Body: []byte("x")})

	got, ok := cache.Get("stale")
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got.Body)

	clock = clock.Add(2 * time.Minute)

	_, ok = cache.Get("stale")
	assert.False(t, ok, "entry past max age should be dropped on read")
	assert.Equal(t, 0, cache.Len())
}

func TestBoundedCache_OverwriteRefreshesEntry(t *testing.T) {
	cache := newBoundedCache(5, time.Hour)

	cache.Put("k", &cachedResponse{Status: 200, Body: []byte("old")})
	cache.Put("k", &cachedResponse{Status: 200, Body: []byte("new")})

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got.Body)
	assert.Equal(t, 1, cache.Len())
}
