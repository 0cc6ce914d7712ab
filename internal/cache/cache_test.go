package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/logger"
	"call-audit-go/internal/types"
)

func sample() types.AnalysisResult {
	return types.AnalysisResult{
		Summary:            "El cliente solicita un reembolso.",
		Satisfaction:       5,
		SatisfactionLevel:  "MUY SATISFECHO",
		Urgency:            types.UrgencyLow,
		ResolutionStatus:   types.ResolutionFullyResolved,
		InteractionQuality: types.QualityPositive,
		Category:           "SOLICITUD",
		Timestamp:          time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "hola")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "hola", sample(), 30*time.Minute))
	assert.True(t, mr.Exists("analysis:hola"))
	assert.Equal(t, 30*time.Minute, mr.TTL("analysis:hola"))

	got, ok, err := c.Get(ctx, "hola")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	_, ok, err = c.Get(ctx, "hola ")
	require.NoError(t, err)
	assert.False(t, ok, "keys are exact text")

	mr.FastForward(31 * time.Minute)
	_, ok, err = c.Get(ctx, "hola")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	_, _, err := c.Get(context.Background(), "hola")
	assert.Error(t, err)
}

func TestMemoryCachePassiveExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "texto", sample(), time.Minute))

	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "texto")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, c.Len(), "nothing is swept until read")
	_, ok, _ = c.Get(ctx, "texto")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheLastWriterWins(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	first := sample()
	second := sample()
	second.Summary = "otro resumen"
	require.NoError(t, c.Put(ctx, "texto", first, time.Minute))
	require.NoError(t, c.Put(ctx, "texto", second, time.Minute))

	got, ok, _ := c.Get(ctx, "texto")
	require.True(t, ok)
	assert.Equal(t, "otro resumen", got.Summary)
}

func TestGuardedDowngradesErrorsToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	g := NewGuarded(backend, time.Minute, logger.Nop())
	ctx := context.Background()

	g.Store(ctx, "texto", sample())
	got, ok := g.Lookup(ctx, "texto")
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	mr.Close()
	_, ok = g.Lookup(ctx, "texto")
	assert.False(t, ok)
	assert.NotPanics(t, func() { g.Store(ctx, "texto", sample()) })
}

func TestKey(t *testing.T) {
	assert.Equal(t, "analysis:Hola Mundo", Key("Hola Mundo"))
}
