package services

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axellelanca/clicktrail/internal/device"
	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/geo"
	"github.com/axellelanca/clicktrail/internal/models"
)

type fakeGeo struct {
	mu     sync.Mutex
	seen   []string
	lookup func(ctx context.Context, ip string) geo.Location
}

func (f *fakeGeo) Resolve(ctx context.Context, ip string) geo.Location {
	f.mu.Lock()
	f.seen = append(f.seen, ip)
	f.mu.Unlock()
	return f.lookup(ctx, ip)
}

func located(city, country string) *fakeGeo {
	return &fakeGeo{lookup: func(_ context.Context, ip string) geo.Location {
		return geo.Location{IP: ip, City: city, Country: country}
	}}
}

type fakeDiscoverer struct {
	ip    string
	err   error
	calls atomic.Int32
}

func (f *fakeDiscoverer) Discover(context.Context) (string, error) {
	f.calls.Add(1)
	return f.ip, f.err
}

func lastClick(t *testing.T, st stores) models.Click {
	t.Helper()
	var c models.Click
	require.NoError(t, st.db.Order("id DESC").First(&c).Error)
	return c
}

func TestRecord_EnrichesAndLowercases(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00001")
	g := located("Paris", "France")
	rec := NewClickRecorder(st.clicks, st.links, g, nil, time.Second)
	rec.classify = func(string) device.Info {
		return device.Info{Device: "Mobile", Browser: "Mobile Safari", OS: "iOS"}
	}

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	rec.Record(context.Background(), models.ClickEvent{
		LinkID:    link.ID,
		Timestamp: ts,
		Request: models.RequestMetadata{
			Headers:    http.Header{"X-Forwarded-For": []string{"203.0.113.7, 10.0.0.1"}},
			RemoteAddr: "10.0.0.1:5555",
			UserAgent:  "Mozilla/5.0 (iPhone)",
			Referer:    "https://News.Example/Item",
		},
	})

	c := lastClick(t, st)
	assert.Equal(t, link.ID, c.LinkID)
	assert.Equal(t, "paris", c.City)
	assert.Equal(t, "france", c.Country)
	assert.Equal(t, "mobile", c.Device)
	assert.Equal(t, "mobile safari", c.Browser)
	assert.Equal(t, "ios", c.OS)
	assert.Equal(t, "203.0.113.7", c.IPAddress)
	assert.Equal(t, "https://News.Example/Item", c.Referer, "referer is stored as received")
	assert.Equal(t, "Mozilla/5.0 (iPhone)", c.UserAgent)
	assert.True(t, ts.Equal(c.Timestamp))
	assert.Equal(t, []string{"203.0.113.7"}, g.seen)

	got, err := st.links.FindByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ClickCount)
}

func TestRecord_SentinelsWhenEverythingFails(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00002")
	g := &fakeGeo{lookup: func(_ context.Context, ip string) geo.Location {
		return geo.Sentinel(ip)
	}}
	disc := &fakeDiscoverer{err: customerrors.ErrNoAddress}
	rec := NewClickRecorder(st.clicks, st.links, g, disc, time.Second)

	rec.Record(context.Background(), models.ClickEvent{
		LinkID:  link.ID,
		Request: models.RequestMetadata{RemoteAddr: "127.0.0.1:4000"},
	})

	c := lastClick(t, st)
	assert.Equal(t, models.Unknown, c.City)
	assert.Equal(t, models.Unknown, c.Country)
	assert.Equal(t, models.Unknown, c.Device)
	assert.Equal(t, models.Unknown, c.Browser)
	assert.Equal(t, models.Unknown, c.OS)
	assert.Equal(t, models.Unknown, c.IPAddress)
	assert.Equal(t, models.DirectReferer, c.Referer)
	assert.False(t, c.Timestamp.IsZero())
	assert.EqualValues(t, 1, disc.calls.Load())
	assert.Empty(t, g.seen, "geo is not consulted without an address")
}

func TestRecord_DiscoversAddressForLoopbackPeer(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00003")
	g := located("Berlin", "Germany")
	disc := &fakeDiscoverer{ip: "198.51.100.4"}
	rec := NewClickRecorder(st.clicks, st.links, g, disc, time.Second)

	rec.Record(context.Background(), models.ClickEvent{
		LinkID:  link.ID,
		Request: models.RequestMetadata{RemoteAddr: "[::1]:8080"},
	})

	c := lastClick(t, st)
	assert.Equal(t, "198.51.100.4", c.IPAddress)
	assert.Equal(t, "berlin", c.City)
	assert.Equal(t, []string{"198.51.100.4"}, g.seen)
}

func TestRecord_GeoFailureKeepsAddress(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00004")
	g := &fakeGeo{lookup: func(_ context.Context, ip string) geo.Location {
		return geo.Sentinel(ip)
	}}
	rec := NewClickRecorder(st.clicks, st.links, g, nil, time.Second)

	rec.Record(context.Background(), models.ClickEvent{
		LinkID:  link.ID,
		Request: models.RequestMetadata{RemoteAddr: "203.0.113.9:443"},
	})

	c := lastClick(t, st)
	assert.Equal(t, "203.0.113.9", c.IPAddress)
	assert.Equal(t, models.Unknown, c.City)
	assert.Equal(t, models.Unknown, c.Country)
}

func TestRecord_ResolverWithoutProvidersYieldsSentinel(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00007")
	rec := NewClickRecorder(st.clicks, st.links, geo.NewResolver(time.Second), nil, time.Second)

	rec.Record(context.Background(), models.ClickEvent{
		LinkID: link.ID,
		Request: models.RequestMetadata{
			RemoteAddr: "203.0.113.20:443",
			Referer:    "https://Example.com/Path?Q=AbC",
		},
	})

	c := lastClick(t, st)
	assert.Equal(t, "203.0.113.20", c.IPAddress)
	assert.Equal(t, models.Unknown, c.City)
	assert.Equal(t, models.Unknown, c.Country)
	assert.Equal(t, "https://Example.com/Path?Q=AbC", c.Referer)
}

func TestRecord_BlankRefererIsDirect(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00008")
	rec := NewClickRecorder(st.clicks, st.links, located("Lyon", "France"), nil, time.Second)

	rec.Record(context.Background(), models.ClickEvent{
		LinkID:  link.ID,
		Request: models.RequestMetadata{RemoteAddr: "203.0.113.21:443", Referer: "   "},
	})

	assert.Equal(t, models.DirectReferer, lastClick(t, st).Referer)
}

func TestRecord_SlowGeoIsBoundedByEnrichTimeout(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00005")
	g := &fakeGeo{lookup: func(ctx context.Context, ip string) geo.Location {
		<-ctx.Done()
		return geo.Sentinel(ip)
	}}
	rec := NewClickRecorder(st.clicks, st.links, g, nil, 50*time.Millisecond)

	start := time.Now()
	rec.Record(context.Background(), models.ClickEvent{
		LinkID:  link.ID,
		Request: models.RequestMetadata{RemoteAddr: "203.0.113.9:443"},
	})

	assert.Less(t, time.Since(start), 2*time.Second)
	c := lastClick(t, st)
	assert.Equal(t, models.Unknown, c.Country)

	got, err := st.links.FindByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ClickCount, "persistence is not cut short by the enrichment deadline")
}

func TestRecord_ConcurrentClicksAreAllCounted(t *testing.T) {
	st := newStores(t)
	link := st.link(t, "alice", "rec00006")
	rec := NewClickRecorder(st.clicks, st.links, located("Lyon", "France"), nil, time.Second)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record(context.Background(), models.ClickEvent{
				LinkID:  link.ID,
				Request: models.RequestMetadata{RemoteAddr: "203.0.113.10:1000", UserAgent: "curl/8.0"},
			})
		}()
	}
	wg.Wait()

	got, err := st.links.FindByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, got.ClickCount)

	var rows int64
	require.NoError(t, st.db.Model(&models.Click{}).Where("link_id = ?", link.ID).Count(&rows).Error)
	assert.EqualValues(t, n, rows)
}

func TestRecord_FailureIsReportedNotPropagated(t *testing.T) {
	st := newStores(t)
	rec := NewClickRecorder(st.clicks, st.links, located("Lyon", "France"), nil, time.Second)
	event := models.ClickEvent{LinkID: 4242, Request: models.RequestMetadata{RemoteAddr: "203.0.113.10:1000"}}

	err := rec.record(context.Background(), event)
	var failure *customerrors.RecordingFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "increment", failure.Stage)
	assert.EqualValues(t, 4242, failure.LinkID)
	assert.ErrorIs(t, err, customerrors.ErrLinkNotFound)

	assert.NotPanics(t, func() { rec.Record(context.Background(), event) })
}
