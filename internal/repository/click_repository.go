package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/axellelanca/clicktrail/internal/models"
)

// ClickQuery scopes a query on the click log to a set of links plus an optional filter.
// An empty LinkIDs slice matches nothing.
type ClickQuery struct {
	LinkIDs []uint
	Filter  models.AnalyticsFilter
}

// FieldCount is a grouped count over a single column.
type FieldCount struct {
	Value  string
	Clicks int64
}

// CityCount is a grouped count over {country, city}.
type CityCount struct {
	Country string
	City    string
	Clicks  int64
}

// LinkCount is a grouped count per owning link.
type LinkCount struct {
	LinkID uint
	Clicks int64
}

// groupableFields are the click columns analytics may group on.
var groupableFields = map[string]bool{
	"country": true,
	"city":    true,
	"device":  true,
	"browser": true,
	"os":      true,
	"referer": true,
}

// ClickRepository est une interface qui définit les méthodes d'accès au journal des clics.
type ClickRepository interface {
	CreateClick(ctx context.Context, click *models.Click) error
	CountClicks(ctx context.Context, q ClickQuery) (int64, error)
	ClicksPerDay(ctx context.Context, q ClickQuery) ([]models.DailyClicks, error)
	CountByField(ctx context.Context, q ClickQuery, field string, limit int) ([]FieldCount, error)
	CountByCity(ctx context.Context, q ClickQuery, limit int) ([]CityCount, error)
	TopLinks(ctx context.Context, q ClickQuery, limit int) ([]LinkCount, error)
	RecentClicks(ctx context.Context, q ClickQuery, offset, limit int) ([]models.Click, error)
}

// GormClickRepository est l'implémentation de l'interface ClickRepository utilisant GORM.
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository crée et retourne une nouvelle instance de GormClickRepository.
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// CreateClick insère un nouvel enregistrement de clic dans la base de données.
func (r *GormClickRepository) CreateClick(ctx context.Context, click *models.Click) error {
	if err := r.db.WithContext(ctx).Create(click).Error; err != nil {
		return fmt.Errorf("failed to create click: %w", err)
	}
	return nil
}

// scoped applies the link set and the filter to a query on the clicks table.
func (r *GormClickRepository) scoped(ctx context.Context, q ClickQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.Click{}).Where("link_id IN ?", q.LinkIDs)

	f := q.Filter
	if f.StartDate != nil {
		tx = tx.Where("timestamp >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		tx = tx.Where("timestamp <= ?", f.EndDate.UTC())
	}
	if f.Country != "" {
		tx = tx.Where("country = ?", strings.ToLower(f.Country))
	}
	if f.Device != "" {
		tx = tx.Where("device = ?", strings.ToLower(f.Device))
	}
	return tx
}

// CountClicks compte les clics correspondant à la requête.
func (r *GormClickRepository) CountClicks(ctx context.Context, q ClickQuery) (int64, error) {
	if len(q.LinkIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.scoped(ctx, q).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}

// ClicksPerDay buckets clicks by UTC calendar day, ascending. Empty days are absent.
func (r *GormClickRepository) ClicksPerDay(ctx context.Context, q ClickQuery) ([]models.DailyClicks, error) {
	rows := []models.DailyClicks{}
	if len(q.LinkIDs) == 0 {
		return rows, nil
	}
	err := r.scoped(ctx, q).
		Select("strftime('%Y-%m-%d', timestamp) AS date, COUNT(*) AS clicks").
		Group("date").
		Order("date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute clicks per day: %w", err)
	}
	return rows, nil
}

// CountByField groups on one column, sorted by count descending then value.
// A limit <= 0 returns every group.
func (r *GormClickRepository) CountByField(ctx context.Context, q ClickQuery, field string, limit int) ([]FieldCount, error) {
	if !groupableFields[field] {
		return nil, fmt.Errorf("cannot group clicks by %q", field)
	}
	rows := []FieldCount{}
	if len(q.LinkIDs) == 0 {
		return rows, nil
	}
	tx := r.scoped(ctx, q).
		Select(field + " AS value, COUNT(*) AS clicks").
		Group(field).
		Order("clicks DESC, value ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count clicks by %s: %w", field, err)
	}
	return rows, nil
}

// CountByCity groups on the composite {country, city} key.
func (r *GormClickRepository) CountByCity(ctx context.Context, q ClickQuery, limit int) ([]CityCount, error) {
	rows := []CityCount{}
	if len(q.LinkIDs) == 0 {
		return rows, nil
	}
	tx := r.scoped(ctx, q).
		Select("country, city, COUNT(*) AS clicks").
		Group("country, city").
		Order("clicks DESC, city ASC, country ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count clicks by city: %w", err)
	}
	return rows, nil
}

// TopLinks ranks the links in the query by click count.
func (r *GormClickRepository) TopLinks(ctx context.Context, q ClickQuery, limit int) ([]LinkCount, error) {
	rows := []LinkCount{}
	if len(q.LinkIDs) == 0 {
		return rows, nil
	}
	tx := r.scoped(ctx, q).
		Select("link_id, COUNT(*) AS clicks").
		Group("link_id").
		Order("clicks DESC, link_id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to rank links: %w", err)
	}
	return rows, nil
}

// RecentClicks returns a reverse-chronological page of raw clicks.
func (r *GormClickRepository) RecentClicks(ctx context.Context, q ClickQuery, offset, limit int) ([]models.Click, error) {
	clicks := []models.Click{}
	if len(q.LinkIDs) == 0 {
		return clicks, nil
	}
	err := r.scoped(ctx, q).
		Order("timestamp DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&clicks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent clicks: %w", err)
	}
	return clicks, nil
}
