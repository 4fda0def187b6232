package datasets

import (
	"sync"
	"time"

	"tailscale.com/util/lru"
)

// cacheKey identifies a cached lookup. Only the fields relevant to kind are
// set.
type cacheKey struct {
	kind    string
	token   string
	index   int
	seconds float64
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// lookupCache is a TTL-bounded LRU in front of the database. Values are
// treated as immutable by callers; mutable values are copied on the way out.
type lookupCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items lru.Cache[cacheKey, cacheEntry]

	now func() time.Time
}

func newLookupCache(ttl time.Duration, maxEntries int) *lookupCache {
	c := &lookupCache{ttl: ttl, now: time.Now}
	c.items.MaxEntries = maxEntries
	return c
}

func (c *lookupCache) get(k cacheKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items.GetOk(k)
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.items.Delete(k)
		return nil, false
	}
	return e.value, true
}

func (c *lookupCache) set(k cacheKey, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Set(k, cacheEntry{value: v, storedAt: c.now()})
}

func (c *lookupCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

func (c *lookupCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.items.Len() > 0 {
		c.items.DeleteOldest()
	}
}

func (c *lookupCache) setTTL(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = d
}

func (c *lookupCache) setMaxEntries(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.MaxEntries = n
	for n > 0 && c.items.Len() > n {
		c.items.DeleteOldest()
	}
}
