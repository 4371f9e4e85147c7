package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps cache backend failures.
var ErrCacheUnavailable = errors.New("catalog cache unavailable")

// Cache stores pages by canonical key. Clear removes every entry of the
// cache's namespace and nothing else. Deleting an absent key is not an error.
type Cache interface {
	Get(ctx context.Context, key string) (Page, bool, error)
	Set(ctx context.Context, key string, page Page) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// RedisCache stores pages as JSON strings under <namespace>:<key>.
type RedisCache struct {
	redis     redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisCache returns a RedisCache. A ttl of zero stores entries without
// expiry; they then live until the next Clear.
func NewRedisCache(rdb redis.UniversalClient, namespace string, ttl time.Duration) *RedisCache {
	if namespace == "" {
		namespace = "catalog"
	}
	return &RedisCache{redis: rdb, namespace: namespace, ttl: ttl}
}

func (c *RedisCache) key(key string) string {
	return c.namespace + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (Page, bool, error) {
	raw, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Page{}, false, nil
	}
	if err != nil {
		return Page{}, false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return Page{}, false, fmt.Errorf("%w: decode %s: %v", ErrCacheUnavailable, key, err)
	}
	return page, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, page Page) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("catalog: encode page: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.redis.Unlink(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Clear unlinks every key under the namespace.
//
//	Performance: O(N) SCAN over the keyspace, UNLINK in batches of the scan size.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := c.namespace + ":*"
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
		if len(keys) > 0 {
			if err := c.redis.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// LRUCache is an in-process Cache bounded by entry count. Pages are copied
// on the way in and out so callers cannot mutate cached state.
type LRUCache struct {
	lru *lru.Cache[string, Page]
}

// NewLRUCache returns an LRUCache holding at most size pages.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, Page](size)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	return &LRUCache{lru: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (Page, bool, error) {
	page, ok := c.lru.Get(key)
	if !ok {
		return Page{}, false, nil
	}
	return page.Clone(), true, nil
}

func (c *LRUCache) Set(_ context.Context, key string, page Page) error {
	c.lru.Add(key, page.Clone())
	return nil
}

func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *LRUCache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len reports the number of cached pages.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}
