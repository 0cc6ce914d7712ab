// Package cache fronts the analysis stage with a content-addressed store keyed
// by the exact transcript text. The cache is an optimization only; Guarded
// turns every backend failure into a miss.
package cache

import (
	"context"
	"time"

	"call-audit-go/internal/types"
)

const keyPrefix = "analysis:"

// DefaultTTL is thirty minutes.
const DefaultTTL = 1800 * time.Second

type Cache interface {
	Get(ctx context.Context, text string) (types.AnalysisResult, bool, error)
	Put(ctx context.Context, text string, res types.AnalysisResult, ttl time.Duration) error
}

// Key is the exact transcript text with a namespace prefix. No normalization.
func Key(text string) string {
	return keyPrefix + text
}
