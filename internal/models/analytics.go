package models

import "time"

// AnalyticsFilter scopes an analytics query. Nil dates and empty strings mean "no bound".
type AnalyticsFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Country   string
	Device    string
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// FacetEntry is one row of a top-N breakdown.
type FacetEntry struct {
	Name       string `json:"name"`
	Clicks     int64  `json:"clicks"`
	Percentage int    `json:"percentage"`
}

// DailyClicks is one day bucket of a time series, Date is formatted YYYY-MM-DD.
type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// TopLink is a link ranked by its clicks over the filtered period.
type TopLink struct {
	LinkID    uint   `json:"link_id"`
	Title     string `json:"title"`
	ShortCode string `json:"short_code"`
	LongURL   string `json:"long_url"`
	Clicks    int64  `json:"clicks"`
}

// ActivityEntry is a raw click joined with its link's presentation fields.
type ActivityEntry struct {
	ClickID   uint      `json:"click_id"`
	LinkID    uint      `json:"link_id"`
	LinkTitle string    `json:"link_title"`
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Referer   string    `json:"referer"`
}

// ActivityPage is a page of recent activity.
type ActivityPage struct {
	Items      []ActivityEntry `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// OverviewReport aggregates every link owned by one owner.
type OverviewReport struct {
	TotalClicks    int64         `json:"total_clicks"`
	TotalLinks     int64         `json:"total_links"`
	ClicksOverTime []DailyClicks `json:"clicks_over_time"`
	TopCountries   []FacetEntry  `json:"top_countries"`
	TopCities      []FacetEntry  `json:"top_cities"`
	TopDevices     []FacetEntry  `json:"top_devices"`
	TopBrowsers    []FacetEntry  `json:"top_browsers"`
	TopLinks       []TopLink     `json:"top_links"`
}

// LinkReport aggregates a single link.
type LinkReport struct {
	Link           Link          `json:"link"`
	TotalClicks    int64         `json:"total_clicks"`
	ClicksOverTime []DailyClicks `json:"clicks_over_time"`
	TopCountries   []FacetEntry  `json:"top_countries"`
	TopCities      []FacetEntry  `json:"top_cities"`
	TopDevices     []FacetEntry  `json:"top_devices"`
	TopBrowsers    []FacetEntry  `json:"top_browsers"`
	TopReferers    []FacetEntry  `json:"top_referers"`
	RecentActivity *ActivityPage `json:"recent_activity"`
}

// DashboardSummary holds the headline numbers of the dashboard.
type DashboardSummary struct {
	TotalClicks      int64 `json:"total_clicks"`
	TotalLinks       int64 `json:"total_links"`
	ClicksLast7Days  int64 `json:"clicks_last_7_days"`
	ClicksLast30Days int64 `json:"clicks_last_30_days"`
	ClicksGrowth     int   `json:"clicks_growth"`
}

// DashboardCharts holds the chart series of the dashboard.
type DashboardCharts struct {
	ClicksOverTime []DailyClicks `json:"clicks_over_time"`
	TopDevices     []FacetEntry  `json:"top_devices"`
	TopCountries   []FacetEntry  `json:"top_countries"`
	TopLinks       []TopLink     `json:"top_links"`
}

// DashboardReport combines the all-time, last-30-day and last-7-day overviews.
type DashboardReport struct {
	Summary        DashboardSummary `json:"summary"`
	Charts         DashboardCharts  `json:"charts"`
	RecentActivity []ActivityEntry  `json:"recent_activity"`
}
