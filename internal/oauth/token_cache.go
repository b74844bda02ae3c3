package oauth

import (
	"context"
	"sync"
	"time"
)

// AccessTokenCache holds short-lived access tokens keyed by
// (userID, integration type). Implementations must be safe for concurrent
// use. Get returns nil, nil on a miss.
type AccessTokenCache interface {
	Get(ctx context.Context, key IntegrationKey) (*CachedAccessToken, error)
	Put(ctx context.Context, token *CachedAccessToken) error
	Delete(ctx context.Context, key IntegrationKey) error
}

// AccessKey is the composite cache key of a token.
func AccessKey(key IntegrationKey) string {
	return "accesskey-" + key.UserID + "-" + string(key.Type)
}

// MemoryTokenCache is an in-process AccessTokenCache. Entries are dropped
// once they are past their expiry.
type MemoryTokenCache struct {
	mu      sync.RWMutex
	entries map[IntegrationKey]*CachedAccessToken
	now     func() time.Time
}

// NewMemoryTokenCache creates an empty cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{
		entries: make(map[IntegrationKey]*CachedAccessToken),
		now:     time.Now,
	}
}

// Get implements AccessTokenCache.
func (c *MemoryTokenCache) Get(_ context.Context, key IntegrationKey) (*CachedAccessToken, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if !entry.ExpiresAt.After(c.now()) {
		c.mu.Lock()
		// Only drop the entry we looked at; a fresher one may have landed.
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}

	out := *entry
	return &out, nil
}

// Put implements AccessTokenCache.
func (c *MemoryTokenCache) Put(_ context.Context, token *CachedAccessToken) error {
	stored := *token
	c.mu.Lock()
	c.entries[token.Key()] = &stored
	c.mu.Unlock()
	return nil
}

// Delete implements AccessTokenCache.
func (c *MemoryTokenCache) Delete(_ context.Context, key IntegrationKey) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
