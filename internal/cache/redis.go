// Package cache provides a Redis-backed store for geocoding results.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/expose-cli/pkg/nominatim"
)

const keyPrefix = "expose:geocode:"

// DefaultTTL is how long a resolved place is kept.
const DefaultTTL = 30 * 24 * time.Hour

// GeocodeCache implements nominatim.Cache on Redis.
type GeocodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ nominatim.Cache = (*GeocodeCache)(nil)

// NewGeocodeCache connects to the Redis instance at url and verifies it
// responds.
func NewGeocodeCache(ctx context.Context, url string, ttl time.Duration) (*GeocodeCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return newGeocodeCache(client, ttl), nil
}

func newGeocodeCache(client *redis.Client, ttl time.Duration) *GeocodeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &GeocodeCache{client: client, ttl: ttl}
}

// Get returns the cached place, or nil when the key is absent.
func (c *GeocodeCache) Get(ctx context.Context, key string) (*nominatim.Place, error) {
	b, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get %s", key)
	}
	var p nominatim.Place
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, eris.Wrapf(err, "redis: decode %s", key)
	}
	return &p, nil
}

// Set stores p under key with the cache TTL.
func (c *GeocodeCache) Set(ctx context.Context, key string, p *nominatim.Place) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "redis: encode place")
	}
	return eris.Wrapf(c.client.Set(ctx, keyPrefix+key, b, c.ttl).Err(), "redis: set %s", key)
}

// Close releases the connection pool.
func (c *GeocodeCache) Close() error {
	return c.client.Close()
}
