package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultCachePrefix = "session:"
	maxCacheTTL        = 5 * time.Minute
)

// RedisCache is a read-through cache in front of another Lookuper. Redis
// errors fall through to the backing store so the cache never decides
// whether a session exists.
type RedisCache struct {
	client *redis.Client
	next   Lookuper
	prefix string
	logger zerolog.Logger
}

// NewRedisCache wraps next with a Redis cache
func NewRedisCache(client *redis.Client, next Lookuper, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		next:   next,
		prefix: defaultCachePrefix,
		logger: logger,
	}
}

func (c *RedisCache) key(token string) string {
	return fmt.Sprintf("%s%s", c.prefix, token)
}

// Lookup implements Lookuper
func (c *RedisCache) Lookup(ctx context.Context, token string) (*Session, error) {
	data, err := c.client.Get(ctx, c.key(token)).Bytes()
	switch {
	case err == nil:
		var s Session
		if jsonErr := json.Unmarshal(data, &s); jsonErr == nil {
			return &s, nil
		}
		c.logger.Warn().Msg("Discarding corrupt cached session")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("Session cache read failed, falling back to store")
	}

	s, err := c.next.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl > maxCacheTTL {
		ttl = maxCacheTTL
	}
	if ttl > 0 {
		if data, err := json.Marshal(s); err == nil {
			if err := c.client.Set(ctx, c.key(token), data, ttl).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("Session cache write failed")
			}
		}
	}

	return s, nil
}

// Invalidate implements Invalidator
func (c *RedisCache) Invalidate(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, c.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to evict session: %w", err)
	}
	return nil
}
