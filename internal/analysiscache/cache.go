// Package analysiscache keeps recent leaf diagnoses in memory, keyed by a
// hash of the image URL.
package analysiscache

import (
	"context"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
)

// DefaultTTL is how long a diagnosis stays cached.
const DefaultTTL = time.Hour

// Cache is safe for concurrent use.
type Cache struct {
	cache *bigcache.BigCache
}

// New creates a cache whose entries expire after ttl.
func New(ctx context.Context, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = ttl / 2
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: cache}, nil
}

// Key returns the cache key used for rawURL.
func Key(rawURL string) string {
	return strconv.FormatUint(xxhash.Sum64String(rawURL), 16)
}

// Get returns the cached diagnosis for rawURL.
func (c *Cache) Get(rawURL string) (string, bool) {
	v, err := c.cache.Get(Key(rawURL))
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Set caches text for rawURL. Entries that do not fit are dropped.
func (c *Cache) Set(rawURL, text string) {
	_ = c.cache.Set(Key(rawURL), []byte(text))
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Close releases the cache's background cleaner.
func (c *Cache) Close() error {
	return c.cache.Close()
}
