// Package services contains the business logic layer of the click analytics application
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/axellelanca/clicktrail/internal/cache"
	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
	"github.com/axellelanca/clicktrail/internal/models"
	"github.com/axellelanca/clicktrail/internal/qrcode"
	"github.com/axellelanca/clicktrail/internal/repository"
	"github.com/axellelanca/clicktrail/internal/shortcode"
)

// AnonymousOwner owns links created without an authenticated owner.
const AnonymousOwner = "anonymous"

// insertAttempts bounds retries when a generated code loses an insert race.
const insertAttempts = 3

// CreateLinkInput holds everything needed to shorten a URL.
type CreateLinkInput struct {
	LongURL     string
	OwnerID     string
	Title       string
	Description string
	CustomAlias string
	ExpiresAt   *time.Time
	// QREnabled stores a PNG QR code of the long URL on the link.
	QREnabled bool
}

// LinkService provides business logic methods for managing shortened links.
// It acts as an intermediary between the HTTP handlers and the data repository.
type LinkService struct {
	linkRepo  repository.LinkRepository
	generator *shortcode.Generator
	cache     cache.LinkCache
	now       func() time.Time
}

// NewLinkService creates and returns a new instance of LinkService.
// A nil generator uses the default code length and attempt bound, a nil cache disables caching.
func NewLinkService(linkRepo repository.LinkRepository, generator *shortcode.Generator, linkCache cache.LinkCache) *LinkService {
	if generator == nil {
		generator = shortcode.NewGenerator(linkRepo, shortcode.DefaultLength, shortcode.DefaultMaxAttempts)
	}
	if linkCache == nil {
		linkCache = cache.NoopLinkCache{}
	}
	return &LinkService{
		linkRepo:  linkRepo,
		generator: generator,
		cache:     linkCache,
		now:       time.Now,
	}
}

// CreateLink creates a new shortened link.
// Parameters:
//   - in.LongURL: absolute http(s) URL to shorten
//   - in.CustomAlias: optional, used verbatim (lowercased) instead of a generated code
//
// Returns:
//   - *models.Link: the created link
//   - error: ErrInvalidURL, ErrInvalidAlias, ErrDuplicateURL, ErrAliasTaken, ErrGenerationExhausted, or a store error
func (s *LinkService) CreateLink(ctx context.Context, in CreateLinkInput) (*models.Link, error) {
	longURL := strings.TrimSpace(in.LongURL)
	parsed, err := validateURL(longURL)
	if err != nil {
		return nil, err
	}

	owner := strings.TrimSpace(in.OwnerID)
	if owner == "" {
		owner = AnonymousOwner
	}

	dup, err := s.linkRepo.ExistsLongURL(ctx, owner, longURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing links: %w", err)
	}
	if dup {
		return nil, fmt.Errorf("%w: %s", customerrors.ErrDuplicateURL, longURL)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = parsed.Host
	}

	link := &models.Link{
		LongURL:     longURL,
		OwnerID:     owner,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if in.QREnabled {
		if link.QRCode, err = qrcode.DataURL(longURL, qrcode.DefaultSize); err != nil {
			return nil, err
		}
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		link.ExpiresAt = &exp
	}

	if strings.TrimSpace(in.CustomAlias) != "" {
		if err := s.createWithAlias(ctx, link, in.CustomAlias); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedCode(ctx, link); err != nil {
		return nil, err
	}

	metrics.LinksCreated.Inc()
	logging.Ctx(ctx).Info().
		Uint("link_id", link.ID).
		Str("short_code", link.ShortCode).
		Str("owner", owner).
		Msg("Link created")
	return link, nil
}

func (s *LinkService) createWithAlias(ctx context.Context, link *models.Link, rawAlias string) error {
	alias, err := shortcode.NormalizeAlias(rawAlias)
	if err != nil {
		return err
	}

	taken, err := s.linkRepo.CodeExists(ctx, alias)
	if err != nil {
		return fmt.Errorf("failed to check alias availability: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: %s", customerrors.ErrAliasTaken, alias)
	}

	link.ShortCode = alias
	link.CustomAlias = &alias
	return s.linkRepo.CreateLink(ctx, link)
}

func (s *LinkService) createWithGeneratedCode(ctx context.Context, link *models.Link) error {
	var err error
	for i := 0; i < insertAttempts; i++ {
		link.ShortCode, err = s.generator.Generate(ctx)
		if err != nil {
			return err
		}
		err = s.linkRepo.CreateLink(ctx, link)
		if !errors.Is(err, customerrors.ErrAliasTaken) {
			return err
		}
		logging.Ctx(ctx).Debug().Str("code", link.ShortCode).Msg("Generated code taken at insert, drawing again")
	}
	return err
}

// Resolve finds the active link behind a short code or alias.
// Returns ErrLinkNotFound for unknown or deactivated links and ErrLinkExpired past the expiry date.
func (s *LinkService) Resolve(ctx context.Context, code string) (*models.Link, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, customerrors.ErrLinkNotFound
	}

	link, ok, err := s.cache.GetLink(ctx, code)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("code", code).Msg("Link cache read failed")
	}
	if !ok {
		link, err = s.linkRepo.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if link.IsActive {
			if err := s.cache.SetLink(ctx, link); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("code", code).Msg("Link cache write failed")
			}
		}
	}

	if !link.IsActive {
		return nil, fmt.Errorf("%w: %s is inactive", customerrors.ErrLinkNotFound, code)
	}
	if link.IsExpired(s.now()) {
		return nil, fmt.Errorf("%w: %s", customerrors.ErrLinkExpired, code)
	}
	return link, nil
}

// DeleteLink removes a link owned by ownerID together with its clicks.
func (s *LinkService) DeleteLink(ctx context.Context, ownerID string, id uint) error {
	link, err := s.linkRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return customerrors.ErrLinkNotFound
	}

	if err := s.linkRepo.DeleteCascade(ctx, id); err != nil {
		return err
	}
	if err := s.cache.DeleteLink(ctx, link.ShortCode); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("code", link.ShortCode).Msg("Link cache eviction failed")
	}

	logging.Ctx(ctx).Info().Uint("link_id", id).Str("owner", ownerID).Msg("Link deleted")
	return nil
}

// ListLinks returns one page of the owner's links, newest first, narrowed by
// creation date and a search over URL, code, title and description.
func (s *LinkService) ListLinks(ctx context.Context, ownerID string, filter models.LinkListFilter, page models.Pagination) (*models.LinkPage, error) {
	page = NormalizePagination(page)
	links, total, err := s.linkRepo.ListByOwner(ctx, ownerID, filter, (page.Page-1)*page.PageSize, page.PageSize)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []models.Link{}
	}
	return &models.LinkPage{
		Items:      links,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: int((total + int64(page.PageSize) - 1) / int64(page.PageSize)),
	}, nil
}

func validateURL(raw string) (*url.URL, error) {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", customerrors.ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", customerrors.ErrInvalidURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: missing host", customerrors.ErrInvalidURL)
	}
	return parsed, nil
}
