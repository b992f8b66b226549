package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache wraps an optional redis client. Every method is a no-op when redis is
// disabled or unreachable, so callers never branch on availability.
type Cache struct {
	rdb    *redis.Client
	locker *redislock.Client
	log    *zap.Logger
}

// New connects to redis when enabled. A failed ping degrades to a no-op
// cache instead of failing startup.
func New(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *Cache {
	if !cfg.Enabled {
		log.Info("redis disabled; inventory views are not cached")
		return &Cache{log: log}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("failed to connect redis; continuing without cache", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return &Cache{log: log}
	}

	log.Info("connected to redis", zap.String("addr", cfg.Addr))
	return NewWithClient(rdb, log)
}

func NewWithClient(rdb *redis.Client, log *zap.Logger) *Cache {
	c := &Cache{rdb: rdb, log: log}
	if rdb != nil {
		c.locker = redislock.New(rdb)
	}
	return c
}

// Enabled reports whether a redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// DeletePrefix removes every key starting with prefix.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Counter reads the integer at key; an absent key reads as 0.
func (c *Cache) Counter(ctx context.Context, key string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	n, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Incr bumps the counter at key and returns its new value.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	return c.rdb.Incr(ctx, key).Result()
}

// Lock obtains a distributed lock on key, retrying until ctx is done or
// wait elapses. The returned release func is always safe to call.
func (c *Cache) Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	if c == nil || c.locker == nil {
		if c != nil {
			c.log.Debug("proceeding without redis lock", zap.String("key", key))
		}
		return func() {}, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	lock, err := c.locker.Obtain(lockCtx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, apperror.Conflict("%s is being modified by another request", key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			c.log.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
