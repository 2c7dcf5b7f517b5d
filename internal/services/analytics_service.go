package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
	"github.com/axellelanca/clicktrail/internal/models"
	"github.com/axellelanca/clicktrail/internal/repository"
)

const (
	// facetLimit is the number of entries kept per facet.
	facetLimit = 10
	// dashboardLimit is the number of entries kept per dashboard chart.
	dashboardLimit = 5

	DefaultPage              = 1
	DefaultPageSize          = 10
	MaxPageSize              = 100
	DefaultMaxConcurrentJobs = 6

	DefaultTimeRange = "30d"
)

// AnalyticsService computes aggregate reports over the click log.
// Every report is scoped to the links of a single owner.
type AnalyticsService struct {
	links         repository.LinkRepository
	clicks        repository.ClickRepository
	maxConcurrent int
	now           func() time.Time
}

// NewAnalyticsService creates an AnalyticsService. maxConcurrent bounds the
// number of sub-queries a single report runs at once.
func NewAnalyticsService(links repository.LinkRepository, clicks repository.ClickRepository, maxConcurrent int) *AnalyticsService {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	return &AnalyticsService{
		links:         links,
		clicks:        clicks,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// ParseTimeRange maps 7d, 30d, 90d, 1y or all to a filter start date.
// An empty value means 30d, "all" leaves the filter unbounded.
func ParseTimeRange(value string, now time.Time) (models.AnalyticsFilter, error) {
	var days int
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", DefaultTimeRange:
		days = 30
	case "7d":
		days = 7
	case "90d":
		days = 90
	case "1y":
		days = 365
	case "all":
		return models.AnalyticsFilter{}, nil
	default:
		return models.AnalyticsFilter{}, fmt.Errorf("invalid time range %q: expected 7d, 30d, 90d, 1y or all", value)
	}
	start := now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
	end := now.UTC()
	return models.AnalyticsFilter{StartDate: &start, EndDate: &end}, nil
}

// NormalizePagination applies the default page and clamps the page size.
func NormalizePagination(p models.Pagination) models.Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Overview aggregates every click on the owner's links matching filter.
// Only a failure to load the owner's link set is returned; a failing sub-query
// leaves its part of the report empty.
func (s *AnalyticsService) Overview(ctx context.Context, ownerID string, filter models.AnalyticsFilter) (*models.OverviewReport, error) {
	ids, err := s.links.IDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to scope analytics for owner %s: %w", ownerID, err)
	}
	return s.overview(ctx, ids, filter), nil
}

func (s *AnalyticsService) overview(ctx context.Context, ids []uint, filter models.AnalyticsFilter) *models.OverviewReport {
	q := repository.ClickQuery{LinkIDs: ids, Filter: filter}
	report := &models.OverviewReport{
		TotalLinks:     int64(len(ids)),
		ClicksOverTime: []models.DailyClicks{},
		TopCountries:   []models.FacetEntry{},
		TopCities:      []models.FacetEntry{},
		TopDevices:     []models.FacetEntry{},
		TopBrowsers:    []models.FacetEntry{},
		TopLinks:       []models.TopLink{},
	}

	p := s.pool()
	s.submit(ctx, p, "total_clicks", func(ctx context.Context) (err error) {
		report.TotalClicks, err = s.clicks.CountClicks(ctx, q)
		return err
	})
	s.submit(ctx, p, "clicks_over_time", func(ctx context.Context) (err error) {
		report.ClicksOverTime, err = s.clicks.ClicksPerDay(ctx, q)
		return err
	})
	s.submit(ctx, p, "countries", func(ctx context.Context) (err error) {
		report.TopCountries, err = s.fieldFacet(ctx, q, "country")
		return err
	})
	s.submit(ctx, p, "cities", func(ctx context.Context) (err error) {
		report.TopCities, err = s.cityFacet(ctx, q)
		return err
	})
	s.submit(ctx, p, "devices", func(ctx context.Context) (err error) {
		report.TopDevices, err = s.fieldFacet(ctx, q, "device")
		return err
	})
	s.submit(ctx, p, "browsers", func(ctx context.Context) (err error) {
		report.TopBrowsers, err = s.fieldFacet(ctx, q, "browser")
		return err
	})
	s.submit(ctx, p, "top_links", func(ctx context.Context) (err error) {
		report.TopLinks, err = s.topLinks(ctx, q, facetLimit)
		return err
	})
	p.Wait()

	report.ClicksOverTime = orEmpty(report.ClicksOverTime)
	report.TopCountries = orEmpty(report.TopCountries)
	report.TopCities = orEmpty(report.TopCities)
	report.TopDevices = orEmpty(report.TopDevices)
	report.TopBrowsers = orEmpty(report.TopBrowsers)
	report.TopLinks = orEmpty(report.TopLinks)
	return report
}

// LinkAnalytics reports on a single link owned by ownerID, with its referers and
// a page of its recent clicks.
func (s *AnalyticsService) LinkAnalytics(ctx context.Context, ownerID string, linkID uint, filter models.AnalyticsFilter, page models.Pagination) (*models.LinkReport, error) {
	link, err := s.links.FindByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: id %d", customerrors.ErrLinkNotFound, linkID)
	}

	q := repository.ClickQuery{LinkIDs: []uint{link.ID}, Filter: filter}
	page = NormalizePagination(page)
	report := &models.LinkReport{
		Link:           *link,
		ClicksOverTime: []models.DailyClicks{},
		TopCountries:   []models.FacetEntry{},
		TopCities:      []models.FacetEntry{},
		TopDevices:     []models.FacetEntry{},
		TopBrowsers:    []models.FacetEntry{},
		TopReferers:    []models.FacetEntry{},
		RecentActivity: emptyPage(page),
	}

	p := s.pool()
	s.submit(ctx, p, "total_clicks", func(ctx context.Context) (err error) {
		report.TotalClicks, err = s.clicks.CountClicks(ctx, q)
		return err
	})
	s.submit(ctx, p, "clicks_over_time", func(ctx context.Context) (err error) {
		report.ClicksOverTime, err = s.clicks.ClicksPerDay(ctx, q)
		return err
	})
	s.submit(ctx, p, "countries", func(ctx context.Context) (err error) {
		report.TopCountries, err = s.fieldFacet(ctx, q, "country")
		return err
	})
	s.submit(ctx, p, "cities", func(ctx context.Context) (err error) {
		report.TopCities, err = s.cityFacet(ctx, q)
		return err
	})
	s.submit(ctx, p, "devices", func(ctx context.Context) (err error) {
		report.TopDevices, err = s.fieldFacet(ctx, q, "device")
		return err
	})
	s.submit(ctx, p, "browsers", func(ctx context.Context) (err error) {
		report.TopBrowsers, err = s.fieldFacet(ctx, q, "browser")
		return err
	})
	s.submit(ctx, p, "referers", func(ctx context.Context) (err error) {
		report.TopReferers, err = s.fieldFacet(ctx, q, "referer")
		return err
	})
	s.submit(ctx, p, "recent_activity", func(ctx context.Context) error {
		activity, err := s.activityPage(ctx, q, page, map[uint]models.Link{link.ID: *link})
		if err == nil {
			report.RecentActivity = activity
		}
		return err
	})
	p.Wait()

	report.ClicksOverTime = orEmpty(report.ClicksOverTime)
	report.TopCountries = orEmpty(report.TopCountries)
	report.TopCities = orEmpty(report.TopCities)
	report.TopDevices = orEmpty(report.TopDevices)
	report.TopBrowsers = orEmpty(report.TopBrowsers)
	report.TopReferers = orEmpty(report.TopReferers)
	return report, nil
}

// RecentActivity returns a reverse-chronological page of the owner's clicks.
func (s *AnalyticsService) RecentActivity(ctx context.Context, ownerID string, filter models.AnalyticsFilter, page models.Pagination) (*models.ActivityPage, error) {
	ids, err := s.links.IDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to scope analytics for owner %s: %w", ownerID, err)
	}
	q := repository.ClickQuery{LinkIDs: ids, Filter: filter}
	return s.activityPage(ctx, q, NormalizePagination(page), nil)
}

// Dashboard combines the last-30-day, last-7-day and all-time overviews.
func (s *AnalyticsService) Dashboard(ctx context.Context, ownerID string) (*models.DashboardReport, error) {
	ids, err := s.links.IDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to scope analytics for owner %s: %w", ownerID, err)
	}

	now := s.now().UTC()
	last30Start := now.Add(-30 * 24 * time.Hour)
	last7Start := now.Add(-7 * 24 * time.Hour)

	var (
		last30, last7, allTime *models.OverviewReport
		recent                 = emptyPage(models.Pagination{Page: 1, PageSize: dashboardLimit})
	)

	p := pool.New().WithMaxGoroutines(4)
	p.Go(func() { last30 = s.overview(ctx, ids, models.AnalyticsFilter{StartDate: &last30Start}) })
	p.Go(func() { last7 = s.overview(ctx, ids, models.AnalyticsFilter{StartDate: &last7Start}) })
	p.Go(func() { allTime = s.overview(ctx, ids, models.AnalyticsFilter{}) })
	p.Go(func() {
		q := repository.ClickQuery{LinkIDs: ids}
		activity, err := s.activityPage(ctx, q, models.Pagination{Page: 1, PageSize: dashboardLimit}, nil)
		if err != nil {
			s.failed(ctx, "dashboard_recent", err)
			return
		}
		recent = activity
	})
	p.Wait()

	return &models.DashboardReport{
		Summary: models.DashboardSummary{
			TotalClicks:      allTime.TotalClicks,
			TotalLinks:       allTime.TotalLinks,
			ClicksLast7Days:  last7.TotalClicks,
			ClicksLast30Days: last30.TotalClicks,
			ClicksGrowth:     growthRate(last7.TotalClicks, last30.TotalClicks),
		},
		Charts: models.DashboardCharts{
			ClicksOverTime: last30.ClicksOverTime,
			TopDevices:     head(last30.TopDevices, dashboardLimit),
			TopCountries:   head(last30.TopCountries, dashboardLimit),
			TopLinks:       head(last30.TopLinks, dashboardLimit),
		},
		RecentActivity: recent.Items,
	}, nil
}

// activityPage loads one page of clicks and the total count concurrently, then
// joins link metadata. known may already hold the links of the page.
func (s *AnalyticsService) activityPage(ctx context.Context, q repository.ClickQuery, page models.Pagination, known map[uint]models.Link) (*models.ActivityPage, error) {
	var (
		clicks []models.Click
		total  int64
	)
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) (err error) {
		clicks, err = s.clicks.RecentClicks(ctx, q, (page.Page-1)*page.PageSize, page.PageSize)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		total, err = s.clicks.CountClicks(ctx, q)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}

	links := known
	if links == nil {
		var err error
		if links, err = s.links.FindByIDs(ctx, distinctLinkIDs(clicks)); err != nil {
			return nil, err
		}
	}

	out := emptyPage(page)
	out.Total = total
	out.TotalPages = int((total + int64(page.PageSize) - 1) / int64(page.PageSize))
	for _, c := range clicks {
		link := links[c.LinkID]
		out.Items = append(out.Items, models.ActivityEntry{
			ClickID:   c.ID,
			LinkID:    c.LinkID,
			LinkTitle: link.Title,
			ShortCode: link.ShortCode,
			Timestamp: c.Timestamp,
			City:      c.City,
			Country:   c.Country,
			Device:    c.Device,
			Browser:   c.Browser,
			OS:        c.OS,
			Referer:   c.Referer,
		})
	}
	return out, nil
}

// fieldFacet ranks the values of one column. Percentages are taken over the
// whole facet, before truncation.
func (s *AnalyticsService) fieldFacet(ctx context.Context, q repository.ClickQuery, field string) ([]models.FacetEntry, error) {
	rows, err := s.clicks.CountByField(ctx, q, field, 0)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, r := range rows {
		total += r.Clicks
	}
	out := make([]models.FacetEntry, 0, min(len(rows), facetLimit))
	for _, r := range head(rows, facetLimit) {
		out = append(out, models.FacetEntry{Name: r.Value, Clicks: r.Clicks, Percentage: percentage(r.Clicks, total)})
	}
	return out, nil
}

func (s *AnalyticsService) cityFacet(ctx context.Context, q repository.ClickQuery) ([]models.FacetEntry, error) {
	rows, err := s.clicks.CountByCity(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, r := range rows {
		total += r.Clicks
	}
	out := make([]models.FacetEntry, 0, min(len(rows), facetLimit))
	for _, r := range head(rows, facetLimit) {
		out = append(out, models.FacetEntry{
			Name:       r.City + ", " + r.Country,
			Clicks:     r.Clicks,
			Percentage: percentage(r.Clicks, total),
		})
	}
	return out, nil
}

func (s *AnalyticsService) topLinks(ctx context.Context, q repository.ClickQuery, limit int) ([]models.TopLink, error) {
	rows, err := s.clicks.TopLinks(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.LinkID
	}
	links, err := s.links.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.TopLink, 0, len(rows))
	for _, r := range rows {
		link, ok := links[r.LinkID]
		if !ok {
			continue
		}
		out = append(out, models.TopLink{
			LinkID:    r.LinkID,
			Title:     link.Title,
			ShortCode: link.ShortCode,
			LongURL:   link.LongURL,
			Clicks:    r.Clicks,
		})
	}
	return out, nil
}

func (s *AnalyticsService) pool() *pool.Pool {
	return pool.New().WithMaxGoroutines(s.maxConcurrent)
}

// submit runs one sub-query on p. Its error is logged and counted, never propagated.
func (s *AnalyticsService) submit(ctx context.Context, p *pool.Pool, name string, fn func(ctx context.Context) error) {
	p.Go(func() {
		start := time.Now()
		err := fn(ctx)
		metrics.AnalyticsQueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			s.failed(ctx, name, err)
		}
	})
}

func (s *AnalyticsService) failed(ctx context.Context, name string, err error) {
	metrics.AnalyticsQueryFailures.WithLabelValues(name).Inc()
	logging.Ctx(ctx).Warn().Err(err).Str("query", name).Msg("Analytics sub-query failed, facet left empty")
}

func percentage(count, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(count)*100/float64(total) + 0.5))
}

// growthRate compares the last week's run-rate against the last 30 days.
func growthRate(last7, last30 int64) int {
	if last30 == 0 {
		return 0
	}
	return int(math.Floor((float64(last7*4-last30)/float64(last30))*100 + 0.5))
}

func emptyPage(p models.Pagination) *models.ActivityPage {
	return &models.ActivityPage{Items: []models.ActivityEntry{}, Page: p.Page, PageSize: p.PageSize}
}

func distinctLinkIDs(clicks []models.Click) []uint {
	seen := make(map[uint]bool, len(clicks))
	ids := make([]uint, 0, len(clicks))
	for _, c := range clicks {
		if !seen[c.LinkID] {
			seen[c.LinkID] = true
			ids = append(ids, c.LinkID)
		}
	}
	return ids
}

// orEmpty keeps failed facets rendering as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
