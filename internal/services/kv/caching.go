package kv

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// NewCachingStore puts an in-process cache in front of a slower store. Writes
// and deletes go through to the inner store before the cache is touched.
func NewCachingStore(inner Store, ttl time.Duration) Store {
	return &cachingStore{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

type cachingStore struct {
	inner Store
	cache *cache.Cache
	ttl   time.Duration
}

func (c *cachingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), true, nil
	}

	value, ok, err := c.inner.Get(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}

	c.cache.Set(key, value, c.ttl)
	return value, true, nil
}

func (c *cachingStore) Set(ctx context.Context, key string, value string, opts ...Option) error {
	err := c.inner.Set(ctx, key, value, opts...)
	if err != nil {
		c.cache.Delete(key)
		return err
	}

	ttl := c.ttl
	options := applyOptions(opts)
	if options.Expiration > 0 && options.Expiration < ttl {
		ttl = options.Expiration
	}

	c.cache.Set(key, value, ttl)
	return nil
}

func (c *cachingStore) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return c.inner.Delete(ctx, key)
}
