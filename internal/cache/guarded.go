package cache

import (
	"context"
	"time"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/types"
)

// Guarded wraps a backend so that it never fails a request: errors are
// logged as *apperr.CacheError, counted and reported as a miss.
type Guarded struct {
	backend Cache
	ttl     time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewGuarded(backend Cache, ttl time.Duration, log *logger.Logger) *Guarded {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guarded{backend: backend, ttl: ttl, log: log.WithComponent("cache"), metrics: metrics.Default}
}

func (g *Guarded) Lookup(ctx context.Context, text string) (types.AnalysisResult, bool) {
	res, ok, err := g.backend.Get(ctx, text)
	if err != nil {
		g.fail("get", err)
		g.metrics.RecordCacheLookup(false)
		return types.AnalysisResult{}, false
	}
	g.metrics.RecordCacheLookup(ok)
	return res, ok
}

// Store writes with the configured TTL. Concurrent writers for the same text
// race; the last one wins.
func (g *Guarded) Store(ctx context.Context, text string, res types.AnalysisResult) {
	if err := g.backend.Put(ctx, text, res, g.ttl); err != nil {
		g.fail("put", err)
	}
}

func (g *Guarded) TTL() time.Duration { return g.ttl }

func (g *Guarded) fail(op string, err error) {
	cerr := &apperr.CacheError{Op: op, Err: err}
	g.metrics.RecordCacheError(op)
	g.log.WithError(cerr).Warn("cache unavailable, treating as miss")
}
