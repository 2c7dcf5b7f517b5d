package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axellelanca/clicktrail/internal/geo"
	"github.com/axellelanca/clicktrail/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClient(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestLinkCache_SetGetDelete(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewLinkCache(client, time.Hour)
	ctx := context.Background()

	link := &models.Link{ID: 7, ShortCode: "abc12345", LongURL: "https://example.com", OwnerID: "alice", IsActive: true}
	require.NoError(t, c.SetLink(ctx, link))
	assert.True(t, mr.Exists("link:abc12345"))
	assert.Equal(t, time.Hour, mr.TTL("link:abc12345"))

	got, ok, err := c.GetLink(ctx, "ABC12345")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, link.LongURL, got.LongURL)
	assert.True(t, got.IsActive)

	require.NoError(t, c.DeleteLink(ctx, "abc12345"))
	_, ok, err = c.GetLink(ctx, "abc12345")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinkCache_TTLCappedByExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewLinkCache(client, time.Hour)

	soon := time.Now().Add(10 * time.Minute)
	link := &models.Link{ID: 1, ShortCode: "soon0001", LongURL: "https://example.com", ExpiresAt: &soon, IsActive: true}
	require.NoError(t, c.SetLink(context.Background(), link))

	ttl := mr.TTL("link:soon0001")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 10*time.Minute)
}

func TestLinkCache_CorruptEntryIsAnError(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewLinkCache(client, time.Hour)
	require.NoError(t, mr.Set("link:broken", "{not json"))

	_, ok, err := c.GetLink(context.Background(), "broken")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewLinkCache_NilClientIsNoop(t *testing.T) {
	c := NewLinkCache(nil, time.Hour)
	assert.IsType(t, NoopLinkCache{}, c)

	ctx := context.Background()
	require.NoError(t, c.SetLink(ctx, &models.Link{ShortCode: "x"}))
	_, ok, err := c.GetLink(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.DeleteLink(ctx, "x"))
}

func TestGeoCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewGeoCache(client, 24*time.Hour)
	ctx := context.Background()

	_, ok, err := c.GetLocation(ctx, "8.8.8.8")
	require.NoError(t, err)
	assert.False(t, ok)

	loc := geo.Location{IP: "8.8.8.8", City: "Mountain View", Country: "United States"}
	require.NoError(t, c.SetLocation(ctx, "8.8.8.8", loc))
	assert.Equal(t, 24*time.Hour, mr.TTL("geo:8.8.8.8"))

	got, ok, err := c.GetLocation(ctx, "8.8.8.8")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, loc, got)

	require.NoError(t, c.SetLocation(ctx, "1.1.1.1", geo.Sentinel("1.1.1.1")))
	assert.False(t, mr.Exists("geo:1.1.1.1"))
}
