package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/axellelanca/clicktrail/internal/metrics"
	"github.com/axellelanca/clicktrail/internal/models"
)

// LinkCache caches resolved links by short code.
type LinkCache interface {
	GetLink(ctx context.Context, code string) (*models.Link, bool, error)
	SetLink(ctx context.Context, link *models.Link) error
	DeleteLink(ctx context.Context, codes ...string) error
}

// RedisLinkCache stores links as JSON under "link:<code>".
type RedisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache returns a Redis cache, or a no-op cache when client is nil.
func NewLinkCache(client *redis.Client, ttl time.Duration) LinkCache {
	if client == nil {
		return NoopLinkCache{}
	}
	return &RedisLinkCache{client: client, ttl: ttl}
}

func linkKey(code string) string {
	return "link:" + strings.ToLower(code)
}

func (c *RedisLinkCache) GetLink(ctx context.Context, code string) (*models.Link, bool, error) {
	data, err := c.client.Get(ctx, linkKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("link", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("link", "error").Inc()
		return nil, false, fmt.Errorf("failed to read link %s from cache: %w", code, err)
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		metrics.CacheLookups.WithLabelValues("link", "error").Inc()
		return nil, false, fmt.Errorf("failed to decode cached link %s: %w", code, err)
	}
	metrics.CacheLookups.WithLabelValues("link", "hit").Inc()
	return &link, true, nil
}

func (c *RedisLinkCache) SetLink(ctx context.Context, link *models.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to encode link %s: %w", link.ShortCode, err)
	}
	ttl := c.ttl
	if link.ExpiresAt != nil {
		if left := time.Until(*link.ExpiresAt); left > 0 && (ttl <= 0 || left < ttl) {
			ttl = left
		}
	}
	return c.client.Set(ctx, linkKey(link.ShortCode), data, ttl).Err()
}

func (c *RedisLinkCache) DeleteLink(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = linkKey(code)
	}
	return c.client.Del(ctx, keys...).Err()
}

// NoopLinkCache always misses.
type NoopLinkCache struct{}

func (NoopLinkCache) GetLink(context.Context, string) (*models.Link, bool, error) {
	return nil, false, nil
}

func (NoopLinkCache) SetLink(context.Context, *models.Link) error { return nil }

func (NoopLinkCache) DeleteLink(context.Context, ...string) error { return nil }
