package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedResolver is a read-through Redis cache in front of a Resolver.
// Only successful lookups are cached; absence and failures always go
// back to the upstream so a late-registered customer becomes visible
// immediately.
type CachedResolver struct {
	next   Resolver
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedResolver wraps next with a Redis cache.
func NewCachedResolver(next Resolver, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(customerID int64) string {
	return fmt.Sprintf("customer:%d", customerID)
}

// Resolve returns the cached customer when present, otherwise asks the
// upstream and stores the result. Cache failures degrade to a plain
// upstream call.
func (c *CachedResolver) Resolve(ctx context.Context, customerID int64) (*Customer, error) {
	key := cacheKey(customerID)

	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var customer Customer
		if err := json.Unmarshal(raw, &customer); err == nil {
			return &customer, nil
		}
		// Corrupt entry, drop it and fall through to the upstream.
		c.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("customer cache read failed", zap.Error(err))
	}

	customer, err := c.next.Resolve(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(customer); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("customer cache write failed", zap.Error(err))
		}
	}

	return customer, nil
}
