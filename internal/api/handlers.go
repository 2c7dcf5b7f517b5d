package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/models"
	"github.com/axellelanca/clicktrail/internal/services"
)

// ClickEnqueuer accepts click events for asynchronous recording without blocking.
type ClickEnqueuer interface {
	Enqueue(event models.ClickEvent) bool
}

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Links     *services.LinkService
	Analytics *services.AnalyticsService
	Clicks    ClickEnqueuer
	BaseURL   string
	JWTSecret string
}

// NewRouter builds the gin engine with the middleware chain and every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	router := gin.New()
	router.Use(RequestID(), AccessLog(), gin.Recovery())
	SetupRoutes(router, deps)
	return router, nil
}

// SetupRoutes configures all Gin API routes and injects necessary dependencies
// This function is the main routing configuration that sets up all HTTP endpoints
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	h := &handler{deps: deps, baseURL: strings.TrimRight(deps.BaseURL, "/")}

	// Health Check Route - used for monitoring service availability
	router.GET("/health", HealthCheckHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API Routes Group - all business logic endpoints under /api/v1 prefix, authenticated
	api := router.Group("/api/v1", Authenticate(deps.JWTSecret))
	{
		api.POST("/links", h.createLinks)
		api.GET("/links", h.listLinks)
		api.DELETE("/links/:id", h.deleteLink)
		api.GET("/links/:id/analytics", h.linkAnalytics)

		api.GET("/analytics/overview", h.overview)
		api.GET("/analytics/dashboard", h.dashboard)
		api.GET("/analytics/recent", h.recentActivity)
	}

	// Redirection Route - handles the actual URL redirection at root level
	router.GET("/:shortCode", h.redirect)
}

type handler struct {
	deps    Dependencies
	baseURL string
}

// HealthCheckHandler handles the /health route to verify service status
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateLinkRequest represents the JSON request body for creating one or multiple links
// Single: {"long_url": "https://example.com", "custom_alias": "promo"}
// Multiple: {"long_urls": ["https://example.com", "https://google.com"]}
// A custom alias only applies to a single URL.
type CreateLinkRequest struct {
	LongURL        string   `json:"long_url" binding:"omitempty,url"`
	LongURLs       []string `json:"long_urls" binding:"omitempty,max=100,dive,url"`
	CustomAlias    string   `json:"custom_alias" binding:"omitempty,alias"`
	Title          string   `json:"title" binding:"omitempty,max=255"`
	Description    string   `json:"description" binding:"omitempty,max=500"`
	ExpiresInHours int      `json:"expires_in_hours" binding:"omitempty,min=1"`
	QREnabled      bool     `json:"qr_enabled"`
}

// CreateLinkResponse represents the response for a single link creation
// It is also used as an element of the results array for multiple URLs
type CreateLinkResponse struct {
	ID           uint       `json:"id,omitempty"`
	ShortCode    string     `json:"short_code,omitempty"`
	LongURL      string     `json:"long_url"`
	FullShortURL string     `json:"full_short_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	QRCode       string     `json:"qr_code,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
}

// CreateLinksResponse represents the response for multiple link creation
type CreateLinksResponse struct {
	Results []CreateLinkResponse `json:"results"`
	Summary BatchSummary         `json:"summary"`
}

// BatchSummary holds the aggregate statistics of a batch creation
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

func (h *handler) createLinks(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	var urlsToProcess []string
	if req.LongURL != "" {
		urlsToProcess = append(urlsToProcess, req.LongURL)
	}
	urlsToProcess = append(urlsToProcess, req.LongURLs...)

	if len(urlsToProcess) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either 'long_url' or 'long_urls' must be provided"})
		return
	}
	if len(urlsToProcess) > 1 && req.CustomAlias != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'custom_alias' can only be used with a single URL"})
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := time.Now().UTC().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}
	input := func(longURL string) services.CreateLinkInput {
		return services.CreateLinkInput{
			LongURL:     longURL,
			OwnerID:     OwnerID(c),
			Title:       req.Title,
			Description: req.Description,
			CustomAlias: req.CustomAlias,
			ExpiresAt:   expiresAt,
			QREnabled:   req.QREnabled,
		}
	}

	if len(urlsToProcess) == 1 {
		link, err := h.deps.Links.CreateLink(c.Request.Context(), input(urlsToProcess[0]))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, h.linkResponse(link))
		return
	}

	// Each URL is processed independently so some can succeed even if others fail
	resp := CreateLinksResponse{Results: make([]CreateLinkResponse, 0, len(urlsToProcess))}
	for _, longURL := range urlsToProcess {
		link, err := h.deps.Links.CreateLink(c.Request.Context(), input(longURL))
		if err != nil {
			_, msg := statusFor(err)
			if msg == internalErrorMessage {
				logging.Ctx(c.Request.Context()).Error().Err(err).Str("long_url", longURL).Msg("Error creating link")
			}
			resp.Results = append(resp.Results, CreateLinkResponse{LongURL: longURL, Error: msg})
			resp.Summary.Failed++
			continue
		}
		resp.Results = append(resp.Results, h.linkResponse(link))
		resp.Summary.Successful++
	}
	resp.Summary.Total = len(urlsToProcess)

	statusCode := http.StatusMultiStatus
	switch {
	case resp.Summary.Failed == 0:
		statusCode = http.StatusCreated
	case resp.Summary.Successful == 0:
		statusCode = http.StatusBadRequest
	}
	c.JSON(statusCode, resp)
}

func (h *handler) linkResponse(link *models.Link) CreateLinkResponse {
	return CreateLinkResponse{
		ID:           link.ID,
		ShortCode:    link.ShortCode,
		LongURL:      link.LongURL,
		FullShortURL: h.baseURL + "/" + link.ShortCode,
		Title:        link.Title,
		Description:  link.Description,
		QRCode:       link.QRCode,
		ExpiresAt:    link.ExpiresAt,
		Success:      true,
	}
}

// listLinks pages the caller's links: ?page=&pageSize=&startDate=&endDate=&search=
// The dates bound the creation time.
func (h *handler) listLinks(c *gin.Context) {
	filter := models.LinkListFilter{Search: c.Query("search")}
	for name, dst := range map[string]**time.Time{"startDate": &filter.StartDate, "endDate": &filter.EndDate} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + ": expected YYYY-MM-DD or RFC 3339"})
			return
		}
		*dst = &t
	}

	page, err := h.deps.Links.ListLinks(c.Request.Context(), OwnerID(c), filter, parsePagination(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"links": page.Items,
		"count": len(page.Items),
		"pagination": gin.H{
			"page":        page.Page,
			"page_size":   page.PageSize,
			"total":       page.Total,
			"total_pages": page.TotalPages,
		},
	})
}

func (h *handler) deleteLink(c *gin.Context) {
	id, ok := linkID(c)
	if !ok {
		return
	}
	if err := h.deps.Links.DeleteLink(c.Request.Context(), OwnerID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) linkAnalytics(c *gin.Context) {
	id, ok := linkID(c)
	if !ok {
		return
	}
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	report, err := h.deps.Analytics.LinkAnalytics(c.Request.Context(), OwnerID(c), id, filter, parsePagination(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (h *handler) overview(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	filter.Country = strings.ToLower(strings.TrimSpace(c.Query("country")))
	filter.Device = strings.ToLower(strings.TrimSpace(c.Query("device")))

	report, err := h.deps.Analytics.Overview(c.Request.Context(), OwnerID(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (h *handler) dashboard(c *gin.Context) {
	report, err := h.deps.Analytics.Dashboard(c.Request.Context(), OwnerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (h *handler) recentActivity(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	page, err := h.deps.Analytics.RecentActivity(c.Request.Context(), OwnerID(c), filter, parsePagination(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": page})
}

// redirect resolves the short code, queues the click and issues a 302.
// Click tracking never delays or fails the redirect.
func (h *handler) redirect(c *gin.Context) {
	shortCode := c.Param("shortCode")

	link, err := h.deps.Links.Resolve(c.Request.Context(), shortCode)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.deps.Clicks != nil {
		h.deps.Clicks.Enqueue(models.ClickEvent{
			LinkID:    link.ID,
			Timestamp: time.Now().UTC(),
			Request: models.RequestMetadata{
				Headers:    c.Request.Header.Clone(),
				RemoteAddr: c.Request.RemoteAddr,
				UserAgent:  c.Request.UserAgent(),
				Referer:    c.Request.Referer(),
			},
		})
	}

	c.Redirect(http.StatusFound, link.LongURL)
}

const internalErrorMessage = "Internal server error"

// statusFor maps service errors to an HTTP status and a client-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, customerrors.ErrGenerationExhausted):
		return http.StatusServiceUnavailable, "Unable to generate unique short code. Please try again later."
	case errors.Is(err, customerrors.ErrAliasTaken):
		return http.StatusConflict, "Custom alias is already in use"
	case errors.Is(err, customerrors.ErrDuplicateURL):
		return http.StatusConflict, "You have already shortened this URL"
	case errors.Is(err, customerrors.ErrInvalidURL):
		return http.StatusBadRequest, "URL must be an absolute http or https URL"
	case errors.Is(err, customerrors.ErrInvalidAlias):
		return http.StatusBadRequest, "Custom alias must be 1 to 32 characters of a-z, 0-9, '_' or '-'"
	case errors.Is(err, customerrors.ErrLinkNotFound):
		return http.StatusNotFound, "Short URL not found"
	case errors.Is(err, customerrors.ErrLinkExpired):
		return http.StatusGone, "Short URL has expired"
	}
	return http.StatusInternalServerError, internalErrorMessage
}

func (h *handler) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

func linkID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return 0, false
	}
	return uint(id), true
}

// parseFilter reads timeRange, then lets explicit startDate and endDate override it.
func parseFilter(c *gin.Context) (models.AnalyticsFilter, bool) {
	filter, err := services.ParseTimeRange(c.Query("timeRange"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return filter, false
	}
	for name, dst := range map[string]**time.Time{"startDate": &filter.StartDate, "endDate": &filter.EndDate} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + ": expected YYYY-MM-DD or RFC 3339"})
			return filter, false
		}
		*dst = &t
	}
	return filter, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parsePagination(c *gin.Context) models.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	return services.NormalizePagination(models.Pagination{Page: page, PageSize: size})
}
