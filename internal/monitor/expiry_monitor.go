// Package monitor runs the periodic background sweeps of the link table.
package monitor

import (
	"context"
	"time"

	"github.com/axellelanca/clicktrail/internal/cache"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
	"github.com/axellelanca/clicktrail/internal/models"
)

// ExpiredLinkDeactivator flips expired links to inactive and returns them.
type ExpiredLinkDeactivator interface {
	DeactivateExpired(ctx context.Context, now time.Time) ([]models.Link, error)
}

// ExpiryMonitor periodically deactivates links past their expiry date and evicts
// them from the link cache, so redirects stop without waiting for the cache TTL.
type ExpiryMonitor struct {
	links    ExpiredLinkDeactivator
	cache    cache.LinkCache
	interval time.Duration
	now      func() time.Time
}

// NewExpiryMonitor creates and returns a new instance of ExpiryMonitor.
// interval parameter determines how frequently links will be swept.
func NewExpiryMonitor(links ExpiredLinkDeactivator, linkCache cache.LinkCache, interval time.Duration) *ExpiryMonitor {
	if linkCache == nil {
		linkCache = cache.NoopLinkCache{}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpiryMonitor{links: links, cache: linkCache, interval: interval, now: time.Now}
}

// Start runs the sweep loop until ctx is cancelled. It blocks, run it in a goroutine.
func (m *ExpiryMonitor) Start(ctx context.Context) {
	logging.Info().Dur("interval", m.interval).Msg("Starting expiry monitor")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Immediate sweep on startup before waiting for the first tick
	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Expiry monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one deactivation pass and returns the number of links it deactivated.
func (m *ExpiryMonitor) Sweep(ctx context.Context) int {
	expired, err := m.links.DeactivateExpired(ctx, m.now().UTC())
	if err != nil {
		logging.Error().Err(err).Msg("Expiry sweep failed")
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	codes := make([]string, len(expired))
	for i, l := range expired {
		codes[i] = l.ShortCode
	}
	if err := m.cache.DeleteLink(ctx, codes...); err != nil {
		logging.Warn().Err(err).Int("links", len(codes)).Msg("Failed to evict expired links from cache")
	}

	metrics.LinksExpired.Add(float64(len(expired)))
	logging.Info().Int("links", len(expired)).Strs("codes", codes).Msg("Expired links deactivated")
	return len(expired)
}
