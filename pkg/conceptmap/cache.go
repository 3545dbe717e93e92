package conceptmap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// CachedStore is a Redis read-through wrapper around another Store. Cache
// failures degrade to the inner store, never to an error.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
}

func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

func (c *CachedStore) Forward(ctx context.Context, namcCode string) ([]Target, error) {
	key := "conceptmap:fwd:" + namcCode
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var targets []Target
		if err := json.Unmarshal([]byte(cached), &targets); err == nil {
			return targets, nil
		}
	}

	targets, err := c.inner.Forward(ctx, namcCode)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, targets)
	return targets, nil
}

func (c *CachedStore) Reverse(ctx context.Context, icdCode string) ([]Source, error) {
	key := "conceptmap:rev:" + icdCode
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var sources []Source
		if err := json.Unmarshal([]byte(cached), &sources); err == nil {
			return sources, nil
		}
	}

	sources, err := c.inner.Reverse(ctx, icdCode)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, sources)
	return sources, nil
}

func (c *CachedStore) set(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Debug("Concept map cache write failed")
	}
}
