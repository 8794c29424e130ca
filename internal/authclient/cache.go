package authclient

import (
	"sync"
	"time"
)

// Identity is the signed-in user as last confirmed by the server.
type Identity struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsAdmin   bool      `json:"isAdmin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionCache holds the identity between server round trips. An entry is
// usable until the session expires or MaxAge passes since it was confirmed,
// whichever comes first. It is safe for concurrent use.
type SessionCache struct {
	mu          sync.RWMutex
	identity    *Identity
	confirmedAt time.Time
	maxAge      time.Duration
}

func NewSessionCache(maxAge time.Duration) *SessionCache {
	return &SessionCache{maxAge: maxAge}
}

// Populate stores id as confirmed at now.
func (c *SessionCache) Populate(id Identity, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &id
	c.confirmedAt = now
}

// Get returns a copy of the cached identity if it is still usable at now.
func (c *SessionCache) Get(now time.Time) (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil || !now.Before(c.identity.ExpiresAt) {
		return Identity{}, false
	}
	if c.maxAge > 0 && now.Sub(c.confirmedAt) >= c.maxAge {
		return Identity{}, false
	}
	return *c.identity, true
}

// Extend moves the cached expiry after a refresh.
func (c *SessionCache) Extend(expiresAt time.Time, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return
	}
	c.identity.ExpiresAt = expiresAt
	c.confirmedAt = now
}

func (c *SessionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = nil
	c.confirmedAt = time.Time{}
}
