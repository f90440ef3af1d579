package cache

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-dealflow/authz"
)

// Cache stores resolved membership roles by org and user.
type Cache interface {
	Get(ctx context.Context, orgID, userID string) (authz.Role, bool)
	Set(ctx context.Context, orgID, userID string, role authz.Role)
	Delete(ctx context.Context, orgID, userID string)
	Clear(ctx context.Context)
}

// NoopCache ignores all cache operations.
type NoopCache struct{}

// Get implements Cache.
func (NoopCache) Get(context.Context, string, string) (authz.Role, bool) {
	return "", false
}

// Set implements Cache.
func (NoopCache) Set(context.Context, string, string, authz.Role) {}

// Delete implements Cache.
func (NoopCache) Delete(context.Context, string, string) {}

// Clear implements Cache.
func (NoopCache) Clear(context.Context) {}

// DefaultTTL bounds how long a role stays cached.
const DefaultTTL = time.Minute

type entry struct {
	role    authz.Role
	expires time.Time
}

type key struct {
	orgID  string
	userID string
}

// MemoryCache is an in-process Cache with a fixed TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[key]entry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption customizes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if c == nil || ttl <= 0 {
			return
		}
		c.ttl = ttl
	}
}

// WithNowFunc sets the clock.
func WithNowFunc(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if c == nil || now == nil {
			return
		}
		c.now = now
	}
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: map[key]entry{},
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get implements Cache. Expired entries are treated as misses.
func (c *MemoryCache) Get(_ context.Context, orgID, userID string) (authz.Role, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	e, ok := c.entries[key{orgID, userID}]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		delete(c.entries, key{orgID, userID})
		c.mu.Unlock()
		return "", false
	}
	return e.role, true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, orgID, userID string, role authz.Role) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key{orgID, userID}] = entry{role: role, expires: c.now().Add(c.ttl)}
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, orgID, userID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{orgID, userID})
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[key]entry{}
}

var (
	_ Cache = NoopCache{}
	_ Cache = (*MemoryCache)(nil)
)
