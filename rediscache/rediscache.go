// Package rediscache implements configcat.ConfigCache on top of Redis so
// that several processes using the same SDK key can share the downloaded
// config JSON.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	configcat "github.com/configcat/go-sdk/v9"
	"github.com/redis/go-redis/v9"
)

var _ configcat.ConfigCache = (*Cache)(nil)

// Cache stores config entries in Redis.
type Cache struct {
	db         redis.UniversalClient
	expiration time.Duration
}

// New returns a cache that uses the given client. Entries expire after
// expiration; zero means they never expire.
func New(db redis.UniversalClient, expiration time.Duration) *Cache {
	return &Cache{
		db:         db,
		expiration: expiration,
	}
}

// NewFromURL connects to the Redis server at the given
// redis:// or rediss:// URL.
func NewFromURL(url string, expiration time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cannot parse Redis URL: %w", err)
	}
	return New(redis.NewClient(opts), expiration), nil
}

// Get implements configcat.ConfigCache.Get. A missing entry is
// reported as nil with no error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

// Set implements configcat.ConfigCache.Set.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.db.Set(ctx, key, value, c.expiration).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.db.Close()
}
