package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Click ingestion
	ClicksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicktrail_clicks_recorded_total",
			Help: "Total number of click events persisted",
		},
	)

	ClickRecordingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicktrail_click_recording_failures_total",
			Help: "Click events that could not be persisted, by stage",
		},
		[]string{"stage"}, // "insert", "increment"
	)

	ClickEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicktrail_click_events_dropped_total",
			Help: "Click events dropped because the worker queue was full",
		},
	)

	ClickQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clicktrail_click_queue_depth",
			Help: "Click events waiting for a worker",
		},
	)

	EnrichmentDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicktrail_enrichment_degraded_total",
			Help: "Enrichment lookups that fell back to sentinel values",
		},
		[]string{"stage"}, // "address", "geo"
	)

	// Geo providers
	GeoProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicktrail_geo_provider_requests_total",
			Help: "Geo and IP discovery provider attempts by outcome",
		},
		[]string{"provider", "outcome"}, // "success", "failure", "skipped"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clicktrail_circuit_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Caches
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicktrail_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // "hit", "miss", "error"
	)

	// Analytics
	AnalyticsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clicktrail_analytics_query_duration_seconds",
			Help:    "Duration of analytics sub-queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	AnalyticsQueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicktrail_analytics_query_failures_total",
			Help: "Analytics sub-queries that failed and returned an empty facet",
		},
		[]string{"query"},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clicktrail_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	LinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicktrail_links_created_total",
			Help: "Short links created",
		},
	)

	LinksExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicktrail_links_expired_total",
			Help: "Links deactivated by the expiry monitor",
		},
	)
)
