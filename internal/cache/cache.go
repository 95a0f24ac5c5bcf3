// Package cache provides an in-memory TTL cache with ETag support.
package cache

import (
	"crypto/md5"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTL constants.
const (
	TTLStats = 1 * time.Minute // Ledger counts for the admin dashboard
)

const cleanupInterval = 5 * time.Minute

type entry struct {
	data []byte
	etag string
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	entries *gocache.Cache
	enabled bool
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
func New(enabled bool) *Cache {
	return &Cache{
		entries: gocache.New(gocache.NoExpiration, cleanupInterval),
		enabled: enabled,
	}
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	v, found := c.entries.Get(key)
	if !found {
		return nil, "", false
	}
	e := v.(entry)
	return e.data, e.etag, true
}

// Set stores a value with a TTL and returns its ETag.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}
	c.entries.Set(key, entry{data: data, etag: etag}, ttl)
	return etag
}

// Delete drops a key, e.g. after a write that changes the cached view.
func (c *Cache) Delete(key string) {
	c.entries.Delete(key)
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]any {
	total := c.entries.ItemCount()
	active := len(c.entries.Items()) // Items skips expired entries
	return map[string]any{
		"enabled":      c.enabled,
		"total_keys":   total,
		"active_keys":  active,
		"expired_keys": total - active,
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if If-None-Match header matches the current ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	// Simple comparison, handles the common single-etag case
	return ifNoneMatch == etag
}
