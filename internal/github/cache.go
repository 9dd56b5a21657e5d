package github

import (
	"fmt"
	"sync"

	"github.com/minio/highwayhash"
)

var hashKey = []byte{
	0x63, 0x69, 0x74, 0x68, 0x65, 0x61, 0x74, 0x65, 0x72, 0x2d, 0x68, 0x74, 0x74, 0x70, 0x2d, 0x63,
	0x61, 0x63, 0x68, 0x65, 0x2d, 0x6b, 0x65, 0x79, 0x2d, 0x76, 0x31, 0x00, 0x00, 0x00, 0x00, 0x01,
}

// CacheKey maps the request URL to the key in Cache.
func CacheKey(requestURL string) string {
	return fmt.Sprintf("%016x", highwayhash.Sum64([]byte(requestURL), hashKey))
}

// MemoryCache is the Cache which lives in memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CachedResponse
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]CachedResponse{}}
}

// LoadResponse implements Cache.
func (cache *MemoryCache) LoadResponse(key string) (CachedResponse, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	entry, exists := cache.entries[key]
	return entry, exists
}

// SaveResponse implements Cache.
func (cache *MemoryCache) SaveResponse(key string, response CachedResponse) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	response.Body = append([]byte{}, response.Body...)
	cache.entries[key] = response
	return nil
}

// Len returns the number of cached responses.
func (cache *MemoryCache) Len() int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.entries)
}
