// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const keyPrefix = "filechain:digest:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number

	// ConnectRetries bounds the connection attempts made by NewRedisCache.
	ConnectRetries int
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures int
	// BreakerOpen is how long the breaker stays open before probing again.
	BreakerOpen time.Duration
}

// RedisCache is a Redis-backed Cache. Every call goes through a circuit
// breaker; while it is open, reads miss and writes are dropped.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
	stats   struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

func newBreaker(cfg RedisConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	fails := cfg.BreakerFailures
	if fails <= 0 {
		fails = 5
	}
	open := cfg.BreakerOpen
	if open <= 0 {
		open = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-digest-cache",
		Timeout: open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("event", "cache.breaker_state").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("redis circuit breaker changed state")
		},
		// A missing key is a normal answer, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	})
}

// NewRedisCache connects to Redis, retrying with exponential backoff.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second

	err := backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Debug().Err(err).Str("addr", cfg.Addr).Msg("redis ping failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis digest cache")

	return newRedisCache(client, cfg, logger), nil
}

func newRedisCache(client *redis.Client, cfg RedisConfig, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client:  client,
		breaker: newBreaker(cfg, logger),
		logger:  logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, keyPrefix+key).Result()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		c.stats.misses.Add(1)
		return "", false
	}
	c.stats.hits.Add(1)
	return res.(string), true
}

func (c *RedisCache) Set(ctx context.Context, key, digest string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, keyPrefix+key, digest, ttl).Err()
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.stats.sets.Add(1)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Del(ctx, keyPrefix+key).Err()
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

// Clear deletes only this cache's keys; the rest of the database is untouched.
func (c *RedisCache) Clear(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 256).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis clear failed")
	}
}

func (c *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size := 0
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis scan failed")
	}

	return Stats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		CurrentSize: size,
	}
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (c *RedisCache) BreakerState() string {
	return c.breaker.State().String()
}

// HealthCheck checks if Redis is available.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
