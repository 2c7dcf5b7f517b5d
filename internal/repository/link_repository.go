package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	customerrors "github.com/axellelanca/clicktrail/internal/errors"
	"github.com/axellelanca/clicktrail/internal/models"
)

// LinkRepository est une interface qui définit les méthodes d'accès aux liens.
type LinkRepository interface {
	CreateLink(ctx context.Context, link *models.Link) error
	FindByID(ctx context.Context, id uint) (*models.Link, error)
	FindByCode(ctx context.Context, code string) (*models.Link, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ExistsLongURL(ctx context.Context, ownerID, longURL string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, filter models.LinkListFilter, offset, limit int) ([]models.Link, int64, error)
	IDsByOwner(ctx context.Context, ownerID string) ([]uint, error)
	IncrementClickCount(ctx context.Context, id uint) error
	DeleteCascade(ctx context.Context, id uint) error
	DeactivateExpired(ctx context.Context, now time.Time) ([]models.Link, error)
}

// GormLinkRepository est l'implémentation de LinkRepository utilisant GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository crée et retourne une nouvelle instance de GormLinkRepository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// CreateLink insère un nouveau lien. A unique violation on short_code or custom_alias
// is reported as ErrAliasTaken so callers see the same error as a failed pre-check.
func (r *GormLinkRepository) CreateLink(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", customerrors.ErrAliasTaken, link.ShortCode)
		}
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// FindByID récupère un lien par son identifiant.
func (r *GormLinkRepository) FindByID(ctx context.Context, id uint) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).First(&link, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// FindByCode récupère un lien par son code court ou son alias.
func (r *GormLinkRepository) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	var link models.Link
	code = strings.ToLower(code)
	err := r.db.WithContext(ctx).
		Where("short_code = ? OR custom_alias = ?", code, code).
		First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// FindByIDs loads links keyed by ID; missing IDs are simply absent from the map.
func (r *GormLinkRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Link, error) {
	out := make(map[uint]models.Link, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var links []models.Link
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	for _, l := range links {
		out[l.ID] = l
	}
	return out, nil
}

// CodeExists checks both the short-code and the alias columns.
func (r *GormLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	code = strings.ToLower(code)
	err := r.db.WithContext(ctx).Model(&models.Link{}).
		Where("short_code = ? OR custom_alias = ?", code, code).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check code %q: %w", code, err)
	}
	return count > 0, nil
}

// ExistsLongURL reports whether ownerID already shortened longURL.
func (r *GormLinkRepository) ExistsLongURL(ctx context.Context, ownerID, longURL string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Link{}).
		Where("owner_id = ? AND long_url = ?", ownerID, longURL).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check long URL: %w", err)
	}
	return count > 0, nil
}

// ListByOwner returns one page of the owner's links, newest first, with the total
// matching the filter. A non-positive limit returns every match. The QR code is
// left out of listings.
func (r *GormLinkRepository) ListByOwner(ctx context.Context, ownerID string, filter models.LinkListFilter, offset, limit int) ([]models.Link, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Scopes(ownedLinks(ownerID, filter)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count links for owner %s: %w", ownerID, err)
	}

	q := r.db.WithContext(ctx).Scopes(ownedLinks(ownerID, filter)).Omit("qr_code").
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	var links []models.Link
	if err := q.Find(&links).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list links for owner %s: %w", ownerID, err)
	}
	return links, total, nil
}

func ownedLinks(ownerID string, filter models.LinkListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("owner_id = ?", ownerID)
		if filter.StartDate != nil {
			db = db.Where("created_at >= ?", filter.StartDate.UTC())
		}
		if filter.EndDate != nil {
			db = db.Where("created_at <= ?", filter.EndDate.UTC())
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
			db = db.Where(
				`(LOWER(long_url) LIKE ? ESCAPE '\' OR LOWER(short_code) LIKE ? ESCAPE '\' OR LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`,
				pattern, pattern, pattern, pattern,
			)
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// IDsByOwner returns the IDs every owner-scoped analytics query filters on.
func (r *GormLinkRepository) IDsByOwner(ctx context.Context, ownerID string) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Where("owner_id = ?", ownerID).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list link IDs for owner %s: %w", ownerID, err)
	}
	return ids, nil
}

// IncrementClickCount adds one to the counter in a single UPDATE, never read-modify-write.
func (r *GormLinkRepository) IncrementClickCount(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Link{}).Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment clicks for link ID %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", customerrors.ErrLinkNotFound, id)
	}
	return nil
}

// DeleteCascade supprime les clics puis le lien, dans une seule transaction.
func (r *GormLinkRepository) DeleteCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_id = ?", id).Delete(&models.Click{}).Error; err != nil {
			return fmt.Errorf("failed to delete clicks for link ID %d: %w", id, err)
		}
		res := tx.Delete(&models.Link{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete link ID %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d", customerrors.ErrLinkNotFound, id)
		}
		return nil
	})
}

// DeactivateExpired flips is_active off for every active link past its expiry and
// returns the links it changed.
func (r *GormLinkRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]models.Link, error) {
	var expired []models.Link
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now.UTC()).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uint, len(expired))
		for i, l := range expired {
			ids[i] = l.ID
		}
		return tx.Model(&models.Link{}).Where("id IN ?", ids).UpdateColumn("is_active", false).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate expired links: %w", err)
	}
	return expired, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return customerrors.ErrLinkNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
