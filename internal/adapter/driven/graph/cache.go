package graph

import (
	"sync"

	"github.com/gregjones/httpcache"
)

// Compile-time interface satisfaction check.
var _ httpcache.Cache = (*responseCache)(nil)

// responseCache is an in-memory httpcache.Cache that can be emptied in one
// step. Entries are keyed by URL only, so they must not outlive the account
// whose token fetched them.
type responseCache struct {
	mu    sync.RWMutex
	inner *httpcache.MemoryCache
}

func newResponseCache() *responseCache {
	return &responseCache{inner: httpcache.NewMemoryCache()}
}

func (c *responseCache) current() *httpcache.MemoryCache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner
}

func (c *responseCache) Get(key string) ([]byte, bool) { return c.current().Get(key) }
func (c *responseCache) Set(key string, body []byte)    { c.current().Set(key, body) }
func (c *responseCache) Delete(key string)              { c.current().Delete(key) }

func (c *responseCache) reset() {
	c.mu.Lock()
	c.inner = httpcache.NewMemoryCache()
	c.mu.Unlock()
}
