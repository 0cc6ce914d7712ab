package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"call-audit-go/internal/types"
)

// RedisCache stores results as JSON with SET EX. Expiry is left to Redis.
type RedisCache struct {
	rdb *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects and pings, backing off for up to ten seconds.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	ping := func() error { return rdb.Ping(ctx).Err() }
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, text string) (types.AnalysisResult, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.AnalysisResult{}, false, nil
	}
	if err != nil {
		return types.AnalysisResult{}, false, err
	}
	var res types.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.AnalysisResult{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	return res, true, nil
}

func (c *RedisCache) Put(ctx context.Context, text string, res types.AnalysisResult, ttl time.Duration) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(text), raw, ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
