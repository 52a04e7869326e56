// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package places

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	Provider string
	PlaceID  string
}

type cacheEntry struct {
	Place  Place
	Err    error
	Expiry time.Time
}

// CachedProvider caches the details lookups of a Provider by place ID. Unknown places are cached
// for the miss TTL, other errors are not cached. Concurrent lookups of the same place share one
// request. Autocomplete requests are passed through.
type CachedProvider struct {
	provider Provider
	ttlHit   time.Duration
	ttlMiss  time.Duration
	group    singleflight.Group

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

func NewCachedProvider(provider Provider, ttlHit, ttlMiss time.Duration) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		ttlHit:   ttlHit,
		ttlMiss:  ttlMiss,
		cache:    make(map[cacheKey]cacheEntry),
	}
}

func (c *CachedProvider) Name() string {
	return "places cache using " + c.provider.Name()
}

func (c *CachedProvider) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	return c.provider.Autocomplete(ctx, input)
}

func (c *CachedProvider) Details(ctx context.Context, placeID string) (Place, error) {
	key := cacheKey{Provider: c.provider.Name(), PlaceID: placeID}

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.Expiry) {
		place := entry.Place
		place.CacheHit = true
		return place, entry.Err
	}

	result, err, _ := c.group.Do(key.Provider+"\x00"+key.PlaceID, func() (any, error) {
		place, err := c.provider.Details(ctx, placeID)
		switch {
		case err == nil:
			c.store(key, cacheEntry{Place: place, Expiry: time.Now().Add(c.ttlHit)})
		case errors.Is(err, ErrNoResult):
			c.store(key, cacheEntry{Err: err, Expiry: time.Now().Add(c.ttlMiss)})
		}
		return place, err
	})
	place, _ := result.(Place)
	return place, err
}

// Purge removes expired entries from the cache and returns how many were removed.
func (c *CachedProvider) Purge() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for key, entry := range c.cache {
		if !now.Before(entry.Expiry) {
			delete(c.cache, key)
			purged++
		}
	}
	return purged
}

func (c *CachedProvider) store(key cacheKey, entry cacheEntry) {
	c.mu.Lock()
	c.cache[key] = entry
	c.mu.Unlock()
}
