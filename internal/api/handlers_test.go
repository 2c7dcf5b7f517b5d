package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axellelanca/clicktrail/internal/database"
	"github.com/axellelanca/clicktrail/internal/models"
	"github.com/axellelanca/clicktrail/internal/repository"
	"github.com/axellelanca/clicktrail/internal/services"
)

const testSecret = "test-secret-for-handlers"

var dbSeq atomic.Int64

type recordingQueue struct {
	mu     sync.Mutex
	events []models.ClickEvent
}

func (q *recordingQueue) Enqueue(event models.ClickEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return true
}

type testServer struct {
	router *gin.Engine
	links  *repository.GormLinkRepository
	clicks *repository.GormClickRepository
	queue  *recordingQueue
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory(fmt.Sprintf("api_%d", dbSeq.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	links := repository.NewLinkRepository(db)
	clicks := repository.NewClickRepository(db)
	queue := &recordingQueue{}

	router, err := NewRouter(Dependencies{
		Links:     services.NewLinkService(links, nil, nil),
		Analytics: services.NewAnalyticsService(links, clicks, 4),
		Clicks:    queue,
		BaseURL:   "https://sho.rt/",
		JWTSecret: secret,
	})
	require.NoError(t, err)

	return &testServer{router: router, links: links, clicks: clicks, queue: queue}
}

func (s *testServer) do(t *testing.T, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		token, err := IssueToken(testSecret, owner, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, testSecret)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "upstream-42", w.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testSecret)
	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clicktrail_")
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, testSecret)

	w := s.do(t, http.MethodGet, "/api/v1/links", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := IssueToken("another-secret", "alice", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := IssueToken(testSecret, "alice", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/links", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthentication_AnonymousWithoutSecret(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/links", strings.NewReader(`{"long_url":"https://example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	links, total, err := s.links.ListByOwner(context.Background(), services.AnonymousOwner, models.LinkListFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, links, 1)
	assert.EqualValues(t, 1, total)
}

func TestCreateLink_Single(t *testing.T) {
	s := newTestServer(t, testSecret)

	w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": "https://example.com/page", "custom_alias": "Promo", "expires_in_hours": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[CreateLinkResponse](t, w)
	assert.Equal(t, "promo", resp.ShortCode)
	assert.Equal(t, "https://sho.rt/promo", resp.FullShortURL)
	assert.Equal(t, "example.com", resp.Title)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *resp.ExpiresAt, time.Minute)
}

func TestCreateLink_QRCodeAndDescription(t *testing.T) {
	s := newTestServer(t, testSecret)

	w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{
		"long_url":    "https://example.com/qr",
		"description": "Flyer for the spring campaign",
		"qr_enabled":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[CreateLinkResponse](t, w)
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"), resp.QRCode)
	assert.Equal(t, "Flyer for the spring campaign", resp.Description)

	w = s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": "https://example.com/plain"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, decode[CreateLinkResponse](t, w).QRCode)

	w = s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": "https://example.com/long", "description": strings.Repeat("d", 501)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLink_ErrorMapping(t *testing.T) {
	s := newTestServer(t, testSecret)

	w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": "https://example.com", "custom_alias": "taken"})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"duplicate url", gin.H{"long_url": "https://example.com"}, http.StatusConflict},
		{"alias taken", gin.H{"long_url": "https://other.example", "custom_alias": "TAKEN"}, http.StatusConflict},
		{"bad alias", gin.H{"long_url": "https://other.example", "custom_alias": "no!"}, http.StatusBadRequest},
		{"bad url", gin.H{"long_url": "not a url"}, http.StatusBadRequest},
		{"ftp url", gin.H{"long_url": "ftp://example.com/file"}, http.StatusBadRequest},
		{"empty", gin.H{}, http.StatusBadRequest},
		{"alias with batch", gin.H{"long_urls": []string{"https://a.example", "https://b.example"}, "custom_alias": "batch"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/links", "alice", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCreateLink_Batch(t *testing.T) {
	s := newTestServer(t, testSecret)

	w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_urls": []string{"https://a.example", "https://b.example"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[CreateLinksResponse](t, w)
	assert.Equal(t, BatchSummary{Total: 2, Successful: 2}, resp.Summary)

	w = s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_urls": []string{"https://a.example", "https://c.example"}})
	require.Equal(t, http.StatusMultiStatus, w.Code)
	resp = decode[CreateLinksResponse](t, w)
	assert.Equal(t, BatchSummary{Total: 2, Successful: 1, Failed: 1}, resp.Summary)
	assert.False(t, resp.Results[0].Success)
	assert.NotEmpty(t, resp.Results[0].Error)
	assert.True(t, resp.Results[1].Success)

	w = s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_urls": []string{"https://a.example", "https://b.example"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedirect(t *testing.T) {
	s := newTestServer(t, testSecret)
	w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": "https://example.com/target", "custom_alias": "go"})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/GO", nil)
	req.Header.Set("User-Agent", "curl/8.4.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("Referer", "https://news.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/target", w.Header().Get("Location"))

	require.Len(t, s.queue.events, 1)
	ev := s.queue.events[0]
	assert.NotZero(t, ev.LinkID)
	assert.Equal(t, "curl/8.4.0", ev.Request.UserAgent)
	assert.Equal(t, "https://news.example", ev.Request.Referer)
	assert.Equal(t, "203.0.113.5", ev.Request.Headers.Get("X-Forwarded-For"))
	assert.False(t, ev.Timestamp.IsZero())

	w = s.do(t, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, s.queue.events, 1)
}

func TestRedirect_Expired(t *testing.T) {
	s := newTestServer(t, testSecret)
	past := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, s.links.CreateLink(context.Background(), &models.Link{
		ShortCode: "old00001", LongURL: "https://example.com", OwnerID: "alice", IsActive: true, ExpiresAt: &past,
	}))

	w := s.do(t, http.MethodGet, "/old00001", "", nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Empty(t, s.queue.events)
}

func TestListAndDeleteLinks(t *testing.T) {
	s := newTestServer(t, testSecret)
	w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": "https://example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[CreateLinkResponse](t, w)

	w = s.do(t, http.MethodGet, "/api/v1/links", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Links []models.Link `json:"links"`
		Count int           `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)

	path := fmt.Sprintf("/api/v1/links/%d", created.ID)
	w = s.do(t, http.MethodDelete, path, "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/links/abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLinks_PaginationAndSearch(t *testing.T) {
	s := newTestServer(t, testSecret)
	for _, u := range []string{"https://a.example/one", "https://b.example/two", "https://c.example/three"} {
		w := s.do(t, http.MethodPost, "/api/v1/links", "alice", gin.H{"long_url": u, "qr_enabled": true})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/v1/links", "bob", gin.H{"long_url": "https://a.example/one"})
	require.Equal(t, http.StatusCreated, w.Code)

	type listing struct {
		Links      []models.Link `json:"links"`
		Count      int           `json:"count"`
		Pagination struct {
			Page       int   `json:"page"`
			PageSize   int   `json:"page_size"`
			Total      int64 `json:"total"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}

	w = s.do(t, http.MethodGet, "/api/v1/links?page=2&pageSize=2", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[listing](t, w)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 2, page.Pagination.PageSize)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Empty(t, page.Links[0].QRCode)

	w = s.do(t, http.MethodGet, "/api/v1/links?search=B.EXAMPLE", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[listing](t, w)
	require.Len(t, page.Links, 1)
	assert.Equal(t, "https://b.example/two", page.Links[0].LongURL)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	w = s.do(t, http.MethodGet, "/api/v1/links?startDate="+tomorrow, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[listing](t, w)
	assert.Empty(t, page.Links)
	assert.Zero(t, page.Pagination.TotalPages)

	w = s.do(t, http.MethodGet, "/api/v1/links?endDate=yesterday", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	s := newTestServer(t, testSecret)
	ctx := context.Background()
	link := &models.Link{ShortCode: "stats001", LongURL: "https://example.com", OwnerID: "alice", Title: "Stats", IsActive: true}
	require.NoError(t, s.links.CreateLink(ctx, link))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.clicks.CreateClick(ctx, &models.Click{
			LinkID: link.ID, Timestamp: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
			City: "paris", Country: "fr", Device: "mobile", Browser: "safari", OS: "ios",
			IPAddress: "203.0.113.1", Referer: models.DirectReferer,
		}))
	}

	w := s.do(t, http.MethodGet, "/api/v1/analytics/overview?timeRange=7d&country=FR", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	overview := decode[struct {
		Data models.OverviewReport `json:"data"`
	}](t, w)
	assert.EqualValues(t, 3, overview.Data.TotalClicks)
	assert.Equal(t, "paris, fr", overview.Data.TopCities[0].Name)

	w = s.do(t, http.MethodGet, "/api/v1/analytics/overview?timeRange=forever", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/analytics/overview?startDate=yesterday", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/links/%d/analytics?timeRange=all&pageSize=2", link.ID), "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[struct {
		Data models.LinkReport `json:"data"`
	}](t, w)
	assert.EqualValues(t, 3, report.Data.TotalClicks)
	assert.Equal(t, 2, report.Data.RecentActivity.TotalPages)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/links/%d/analytics", link.ID), "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/analytics/dashboard", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode[struct {
		Data models.DashboardReport `json:"data"`
	}](t, w)
	assert.EqualValues(t, 3, dash.Data.Summary.ClicksLast7Days)
	assert.Len(t, dash.Data.RecentActivity, 3)

	w = s.do(t, http.MethodGet, "/api/v1/analytics/recent?page=2&pageSize=2", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	recent := decode[struct {
		Data models.ActivityPage `json:"data"`
	}](t, w)
	assert.Equal(t, 2, recent.Data.Page)
	assert.Len(t, recent.Data.Items, 1)
	assert.Equal(t, "Stats", recent.Data.Items[0].LinkTitle)
}
