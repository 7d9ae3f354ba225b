package mission

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "mission_requirement_cache_hits_total"})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "mission_requirement_cache_miss_total"})
)

type cachedRequirements struct {
	items     []*Requirement
	updatedAt time.Time
}

// RequirementCache memoizes requirement lookups per action key. Requirements
// are immutable once created, so a short TTL only bounds how long a freshly
// created mission takes to become visible.
type RequirementCache struct {
	mu    sync.RWMutex
	items map[string]*cachedRequirements
	ttl   time.Duration
	group singleflight.Group
}

func NewRequirementCache(ttl time.Duration) *RequirementCache {
	return &RequirementCache{
		items: make(map[string]*cachedRequirements),
		ttl:   ttl,
	}
}

func (c *RequirementCache) Get(key string) ([]*Requirement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok || (c.ttl > 0 && time.Since(v.updatedAt) > c.ttl) {
		return nil, false
	}
	return v.items, true
}

func (c *RequirementCache) Set(key string, items []*Requirement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &cachedRequirements{items: items, updatedAt: time.Now()}
}

func (c *RequirementCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// GetOrLoad returns the cached requirement set for key, loading it at most
// once across concurrent callers on a miss.
func (c *RequirementCache) GetOrLoad(key string, load func() ([]*Requirement, error)) ([]*Requirement, error) {
	if items, ok := c.Get(key); ok {
		cacheHits.Inc()
		return items, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if items, ok := c.Get(key); ok {
			return items, nil
		}
		items, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(key, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]*Requirement), nil
}
