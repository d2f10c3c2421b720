// Package cache caches the public read of the active program.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const (
	activeProgramKey = "program:active"
	activeVersionKey = "program:active:version"

	connectTimeout = 5 * time.Second
	ioTimeout      = 3 * time.Second
)

// RedisCache stores the active program as JSON under a single key, next to
// a version counter that every invalidation increments.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at cfg.RedisURL.
func NewRedisCache(ctx context.Context, cfg config.CacheConfig) (*RedisCache, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = connectTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCache{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

func (c *RedisCache) key() string {
	return c.prefix + activeProgramKey
}

// Get returns the cached active program, if any.
func (c *RedisCache) Get(ctx context.Context) (types.ProgramSetting, bool, error) {
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.ProgramSetting{}, false, nil
		}
		return types.ProgramSetting{}, false, err
	}

	var program types.ProgramSetting
	if err := json.Unmarshal(raw, &program); err != nil {
		return types.ProgramSetting{}, false, fmt.Errorf("decode cached program: %w", err)
	}
	return program, true, nil
}

func (c *RedisCache) versionKey() string {
	return c.prefix + activeVersionKey
}

// Version returns the current cache version. A missing counter is zero.
func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	return readVersion(ctx, c.client, c.versionKey())
}

// Set stores program unless the cache was invalidated after version was
// read. Losing the race is not an error.
func (c *RedisCache) Set(ctx context.Context, program types.ProgramSetting, version int64) error {
	raw, err := json.Marshal(program)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, c.versionKey())
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(), raw, c.ttl)
			return nil
		})
		return err
	}, c.versionKey())
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the cached program and bumps the version.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey())
		pipe.Del(ctx, c.key())
		return nil
	})
	return err
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, client stringGetter, key string) (int64, error) {
	version, err := client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
