package service

import (
	"sync"
	"time"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
)

// identityCache holds the last verified user record per identifier. It is
// written only by the session manager; everything else reads through
// Resolution snapshots. An entry doubles as the "has successfully refreshed
// at least once" flag: while one is live, the manager does not re-verify.
type identityCache struct {
	mu  sync.RWMutex
	ttl time.Duration

	entries map[string]cacheEntry
}

type cacheEntry struct {
	user        domainauth.VerifiedUser
	refreshedAt time.Time
}

func newIdentityCache(ttl time.Duration) *identityCache {
	return &identityCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *identityCache) get(identifier string, now time.Time) (domainauth.VerifiedUser, bool) {
	c.mu.RLock()
	entry, ok := c.entries[identifier]
	c.mu.RUnlock()

	if !ok {
		return domainauth.VerifiedUser{}, false
	}
	if c.ttl > 0 && now.Sub(entry.refreshedAt) >= c.ttl {
		c.drop(identifier)
		return domainauth.VerifiedUser{}, false
	}
	return entry.user, true
}

func (c *identityCache) put(identifier string, user domainauth.VerifiedUser, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identifier] = cacheEntry{user: user, refreshedAt: now}
}

// drop removes an entry. Safe to call when no entry exists.
func (c *identityCache) drop(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identifier)
}

func (c *identityCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
