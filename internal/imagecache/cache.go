// Package imagecache provides a bounded, memory-budgeted LRU cache of decoded
// images keyed by source URL. Concurrent loads of the same URL are coalesced.
package imagecache

import (
	"context"
	"image"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"memeforge/internal/errs"
)

// Loader fetches and decodes an image from a URL or data URL.
type Loader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

type entry struct {
	img      image.Image
	lastUsed time.Time
	size     int64
}

type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	totalBytes int64
	maxEntries int
	maxBytes   int64
	loader     Loader
	group      singleflight.Group
	now        func() time.Time
}

func New(loader Loader, maxEntries int, maxBytes int64) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		loader:     loader,
		now:        time.Now,
	}
}

// GetOrLoad returns the cached image for url, loading and admitting it on a
// miss. Concurrent callers for the same URL share a single in-flight load.
func (c *Cache) GetOrLoad(ctx context.Context, url string) (image.Image, error) {
	c.mu.Lock()
	if e, ok := c.entries[url]; ok {
		e.lastUsed = c.now()
		img := e.img
		c.mu.Unlock()
		return img, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(url, func() (any, error) {
		img, err := c.loader.Load(ctx, url)
		if err != nil {
			return nil, errs.Wrap(errs.KindAsset, "load image "+url, err)
		}
		c.add(url, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (c *Cache) add(url string, img image.Image) {
	b := img.Bounds()
	size := int64(b.Dx()) * int64(b.Dy()) * 4 // RGBA estimate

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.entries) >= c.maxEntries || (len(c.entries) > 0 && c.totalBytes+size > c.maxBytes) {
		c.evictOldest()
	}

	c.entries[url] = &entry{img: img, lastUsed: c.now(), size: size}
	c.totalBytes += size
}

// evictOldest removes the least-recently-used entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, e := range c.entries {
		if first || e.lastUsed.Before(oldestTime) {
			first = false
			oldestKey = key
			oldestTime = e.lastUsed
		}
	}
	if oldestKey != "" {
		c.totalBytes -= c.entries[oldestKey].size
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether url is currently cached, without touching LRU state.
func (c *Cache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	return ok
}

// Clear drops every cached entry. Called on engine teardown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.totalBytes = 0
}
