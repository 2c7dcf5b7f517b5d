package services

import (
	"context"
	"strings"
	"time"

	"github.com/axellelanca/clicktrail/internal/clientip"
	"github.com/axellelanca/clicktrail/internal/device"
	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/geo"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
	"github.com/axellelanca/clicktrail/internal/models"
)

// DefaultEnrichTimeout bounds address discovery plus geo resolution for one click.
const DefaultEnrichTimeout = 15 * time.Second

// ClickStore persists enriched clicks.
type ClickStore interface {
	CreateClick(ctx context.Context, click *models.Click) error
}

// LinkCounter bumps the denormalized click counter.
type LinkCounter interface {
	IncrementClickCount(ctx context.Context, id uint) error
}

// GeoLookup resolves an address to a location. It never fails: an address no
// provider could locate comes back as the sentinel location.
type GeoLookup interface {
	Resolve(ctx context.Context, ip string) geo.Location
}

// AddressDiscoverer finds a public address when the request carries none.
type AddressDiscoverer interface {
	Discover(ctx context.Context) (string, error)
}

// ClickRecorder enriches click events and writes them to the click log.
type ClickRecorder struct {
	clicks        ClickStore
	links         LinkCounter
	geo           GeoLookup
	discoverer    AddressDiscoverer
	classify      func(ua string) device.Info
	enrichTimeout time.Duration
}

// NewClickRecorder creates a recorder. discoverer may be nil, in which case
// clicks without a usable client address keep the "unknown" address.
func NewClickRecorder(clicks ClickStore, links LinkCounter, geoLookup GeoLookup, discoverer AddressDiscoverer, enrichTimeout time.Duration) *ClickRecorder {
	if enrichTimeout <= 0 {
		enrichTimeout = DefaultEnrichTimeout
	}
	return &ClickRecorder{
		clicks:        clicks,
		links:         links,
		geo:           geoLookup,
		discoverer:    discoverer,
		classify:      device.Classify,
		enrichTimeout: enrichTimeout,
	}
}

// Record enriches and persists one click. It never fails outward: a lost click
// is logged and counted, the redirect it belongs to has already been served.
func (r *ClickRecorder) Record(ctx context.Context, event models.ClickEvent) {
	if err := r.record(ctx, event); err != nil {
		logging.Ctx(ctx).Error().Err(err).Uint("link_id", event.LinkID).Msg("Click lost")
	}
}

func (r *ClickRecorder) record(ctx context.Context, event models.ClickEvent) error {
	click := r.enrich(ctx, event)

	if err := r.clicks.CreateClick(ctx, click); err != nil {
		metrics.ClickRecordingFailures.WithLabelValues("insert").Inc()
		return &customerrors.RecordingFailure{LinkID: event.LinkID, Stage: "insert", Err: err}
	}
	if err := r.links.IncrementClickCount(ctx, event.LinkID); err != nil {
		metrics.ClickRecordingFailures.WithLabelValues("increment").Inc()
		return &customerrors.RecordingFailure{LinkID: event.LinkID, Stage: "increment", Err: err}
	}

	metrics.ClicksRecorded.Inc()
	logging.Ctx(ctx).Debug().
		Uint("link_id", click.LinkID).
		Str("country", click.Country).
		Str("device", click.Device).
		Msg("Click recorded")
	return nil
}

// enrich resolves the location on its own goroutine while the user agent is classified.
// Both finish before the click is built.
func (r *ClickRecorder) enrich(ctx context.Context, event models.ClickEvent) *models.Click {
	ectx, cancel := context.WithTimeout(ctx, r.enrichTimeout)
	defer cancel()

	located := make(chan geo.Location, 1)
	go func() {
		located <- r.locate(ectx, event.Request)
	}()

	info := r.classify(event.Request.UserAgent)
	loc := <-located

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	ip := loc.IP
	if ip == "" {
		ip = models.Unknown
	}
	// Referer paths and queries are case-sensitive: stored as received.
	referer := event.Request.Referer
	if strings.TrimSpace(referer) == "" {
		referer = models.DirectReferer
	}

	return &models.Click{
		LinkID:    event.LinkID,
		Timestamp: ts.UTC(),
		City:      normalizeField(loc.City),
		Country:   normalizeField(loc.Country),
		Device:    normalizeField(info.Device),
		Browser:   normalizeField(info.Browser),
		OS:        normalizeField(info.OS),
		IPAddress: ip,
		Referer:   referer,
		UserAgent: event.Request.UserAgent,
	}
}

// locate returns the sentinel location on any failure. The IP field is empty
// when no address could be determined at all.
func (r *ClickRecorder) locate(ctx context.Context, meta models.RequestMetadata) geo.Location {
	ip, ok := clientip.Extract(meta)
	if !ok {
		discovered, err := r.discover(ctx)
		if err != nil {
			degraded(ctx, "address", err)
			return geo.Location{City: models.Unknown, Country: models.Unknown}
		}
		ip = discovered
	}

	if r.geo == nil {
		return geo.Sentinel(ip)
	}
	loc := r.geo.Resolve(ctx, ip)
	if loc.IsUnknown() {
		metrics.EnrichmentDegraded.WithLabelValues("geo").Inc()
	}
	loc.IP = ip
	return loc
}

func (r *ClickRecorder) discover(ctx context.Context) (string, error) {
	if r.discoverer == nil {
		return "", customerrors.ErrNoAddress
	}
	return r.discoverer.Discover(ctx)
}

func degraded(ctx context.Context, stage string, err error) {
	metrics.EnrichmentDegraded.WithLabelValues(stage).Inc()
	logging.Ctx(ctx).Warn().Err(&customerrors.ResolutionDegraded{Stage: stage, Err: err}).Msg("Falling back to sentinel values")
}

func normalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return models.Unknown
	}
	return s
}
