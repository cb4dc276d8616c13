package geocoding

import (
	"context"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of queries kept when no size is given.
const DefaultCacheSize = 256

// CachedProvider memoizes a Provider's non-empty results in an LRU.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, []Candidate]
}

// NewCachedProvider wraps inner with a cache of up to maxEntries queries.
func NewCachedProvider(inner Provider, maxEntries int) *CachedProvider {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, []Candidate](maxEntries)
	return &CachedProvider{inner: inner, cache: cache}
}

// Search implements Provider.
func (c *CachedProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	key := strconv.Itoa(limit) + "|" + strings.ToLower(query)
	if results, ok := c.cache.Get(key); ok {
		return append([]Candidate(nil), results...), nil
	}

	results, err := c.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	// Empty answers are not cached so a later retry can find new places.
	if len(results) > 0 {
		c.cache.Add(key, append([]Candidate(nil), results...))
	}
	return results, nil
}

// Len returns the number of cached queries.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}

// Purge drops every cached query.
func (c *CachedProvider) Purge() {
	c.cache.Purge()
}
