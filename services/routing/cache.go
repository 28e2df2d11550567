package routing

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// eventRoute is the cached outcome of resolving an event's creating tenant:
// the tenant id when the creator qualifies for wallet routing, nil when the
// donation should fall through to platform credentials.
type eventRoute struct {
	TenantID  *string
	UpdatedAt time.Time
}

// thread-safe + singleflight
type routeCache struct {
	mu    sync.RWMutex
	items map[string]*eventRoute
	ttl   time.Duration
	group singleflight.Group
}

func newRouteCache(ttl time.Duration) *routeCache {
	return &routeCache{
		items: make(map[string]*eventRoute),
		ttl:   ttl,
	}
}

func (c *routeCache) Get(eventID string) (*eventRoute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[eventID]
	if !ok || (c.ttl > 0 && time.Since(v.UpdatedAt) > c.ttl) {
		return nil, false
	}
	return v, true
}

func (c *routeCache) Set(eventID string, v *eventRoute) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[eventID] = v
}

func (c *routeCache) Invalidate(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, eventID)
}
