package cache

import (
	"context"
	"sync"
	"time"

	"call-audit-go/internal/types"
)

type entry struct {
	value     types.AnalysisResult
	expiresAt time.Time
}

// MemoryCache is the in-process fallback when no Redis address is configured.
// Expired entries are dropped when read; there is no background sweep.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, text string) (types.AnalysisResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(text)
	e, ok := c.entries[key]
	if !ok {
		return types.AnalysisResult{}, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return types.AnalysisResult{}, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Put(_ context.Context, text string, res types.AnalysisResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(text)] = entry{value: res, expiresAt: c.now().Add(ttl)}
	return nil
}

// Len counts stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
