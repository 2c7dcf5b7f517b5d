package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/axellelanca/clicktrail/internal/geo"
	"github.com/axellelanca/clicktrail/internal/metrics"
)

// GeoCache keeps successful geo lookups under "geo:<ip>" for ttl.
type GeoCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ geo.LocationCache = (*GeoCache)(nil)

func NewGeoCache(client *redis.Client, ttl time.Duration) *GeoCache {
	return &GeoCache{client: client, ttl: ttl}
}

func (c *GeoCache) GetLocation(ctx context.Context, ip string) (geo.Location, bool, error) {
	data, err := c.client.Get(ctx, "geo:"+ip).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("geo", "miss").Inc()
		return geo.Location{}, false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("geo", "error").Inc()
		return geo.Location{}, false, fmt.Errorf("failed to read location for %s: %w", ip, err)
	}

	var loc geo.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		metrics.CacheLookups.WithLabelValues("geo", "error").Inc()
		return geo.Location{}, false, fmt.Errorf("failed to decode location for %s: %w", ip, err)
	}
	metrics.CacheLookups.WithLabelValues("geo", "hit").Inc()
	return loc, true, nil
}

func (c *GeoCache) SetLocation(ctx context.Context, ip string, loc geo.Location) error {
	if loc.IsUnknown() {
		return nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "geo:"+ip, data, c.ttl).Err()
}
