package authz

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// resolutionCache holds recently resolved grant sets. Entries are
// eventually-consistent snapshots: they are replaced wholesale, never
// mutated in place, and dropped on grant mutation via invalidate.
type resolutionCache struct {
	ttl time.Duration
	lru *lru.Cache[string, cacheEntry]
	now func() time.Time
}

type cacheEntry struct {
	grants   GrantSet
	storedAt time.Time
}

func newResolutionCache(size int, ttl time.Duration) (*resolutionCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: cache size must be positive", ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: cache ttl must be positive", ErrInvalidInput)
	}
	inner, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &resolutionCache{ttl: ttl, lru: inner, now: time.Now}, nil
}

func (c *resolutionCache) get(userID string) (GrantSet, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.lru.Get(userID)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.lru.Remove(userID)
		return nil, false
	}
	return entry.grants, true
}

func (c *resolutionCache) add(userID string, grants GrantSet) {
	if c == nil {
		return
	}
	c.lru.Add(userID, cacheEntry{grants: grants, storedAt: c.now()})
}

func (c *resolutionCache) invalidate(userID string) {
	if c == nil {
		return
	}
	c.lru.Remove(userID)
}

func (c *resolutionCache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
