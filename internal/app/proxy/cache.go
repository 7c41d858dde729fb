package proxy

import (
	"net/http"
	"sync"
	"time"
)

// cachedResponse is one stored upstream response.
type cachedResponse struct {
	Status   int
	Header   http.Header
	Body     []byte
	storedAt time.Time
}

// boundedCache keeps at most maxEntries responses for at most maxAge each,
// evicting the oldest entries beyond the bound. It has no knowledge of what
// the responses mean.
type boundedCache struct {
	mu         sync.Mutex
	entries    map[string]*cachedResponse
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

func newBoundedCache(maxEntries int, maxAge time.Duration) *boundedCache {
	return &boundedCache{
		entries:    make(map[string]*cachedResponse),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (c *boundedCache) Get(key string) (*cachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.maxAge > 0 && c.now().Sub(entry.storedAt) > c.maxAge {
		delete(c.entries, key)
		return nil, false
	}
	return entry, true
}

func (c *boundedCache) Put(key string, resp *cachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp.storedAt = c.now()
	c.entries[key] = resp

	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey = k
				oldest = e.storedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *boundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
