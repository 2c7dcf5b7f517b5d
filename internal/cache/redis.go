// Package cache holds the Redis-backed read caches in front of the link table
// and the geolocation chain. Both are optional: a nil client yields no-op caches.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/axellelanca/clicktrail/internal/logging"
)

// NewClient connects to Redis and checks the connection with a PING.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logging.Info().Str("addr", addr).Int("db", db).Msg("Connected to Redis")
	return client, nil
}
