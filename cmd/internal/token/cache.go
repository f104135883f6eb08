package token

import (
	"sync"
	"time"
)

// cache holds the four in-memory credential maps, keyed by token string.
// One RWMutex guards all maps: validations take the read lock, writes
// (save, revoke, sweep evictions) take the write lock.
type cache struct {
	mu sync.RWMutex

	user    map[string]Token
	service map[string]Token
	refresh map[string]Token
	api     map[string]Token
}

func newCache() *cache {
	c := &cache{}
	c.reset()
	return c
}

func (c *cache) reset() {
	c.user = make(map[string]Token)
	c.service = make(map[string]Token)
	c.refresh = make(map[string]Token)
	c.api = make(map[string]Token)
}

func (c *cache) mapFor(t Type) map[string]Token {
	switch t {
	case TypeService:
		return c.service
	case TypeRefresh:
		return c.refresh
	case TypeAPI:
		return c.api
	default:
		return c.user
	}
}

// lookup finds a cached token by string. Prefixed strings go straight to
// their map; unprefixed strings may be user or service tokens, so both
// maps are consulted.
func (c *cache) lookup(tokenString string) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch Classify(tokenString, nil) {
	case TypeRefresh:
		t, ok := c.refresh[tokenString]
		return t, ok
	case TypeAPI:
		t, ok := c.api[tokenString]
		return t, ok
	}
	if t, ok := c.user[tokenString]; ok {
		return t, true
	}
	t, ok := c.service[tokenString]
	return t, ok
}

func (c *cache) put(t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapFor(t.Type)[t.TokenID] = t
}

func (c *cache) evict(tokenString string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.user, tokenString)
	delete(c.service, tokenString)
	delete(c.refresh, tokenString)
	delete(c.api, tokenString)
}

// evictUser drops every cached credential belonging to userID.
func (c *cache) evictUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range []map[string]Token{c.user, c.service, c.refresh, c.api} {
		for k, t := range m {
			if t.UserID == userID {
				delete(m, k)
			}
		}
	}
}

// evictExpired drops entries whose expiry is at or before now.
func (c *cache) evictExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range []map[string]Token{c.user, c.service, c.refresh, c.api} {
		for k, t := range m {
			if !now.Before(t.ExpiresAt) {
				delete(m, k)
				n++
			}
		}
	}
	return n
}

// invalidate empties all maps. Called at shutdown so a restart always
// reseeds from the database.
func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.user) + len(c.service) + len(c.refresh) + len(c.api)
}
