package models

import "time"

// Link représente un lien raccourci dans la base de données.
// CustomAlias reste NULL pour les codes générés, l'index unique tolère donc plusieurs NULL.
type Link struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ShortCode   string     `gorm:"uniqueIndex;size:32;not null" json:"short_code"`
	CustomAlias *string    `gorm:"uniqueIndex;size:32" json:"custom_alias,omitempty"`
	LongURL     string     `gorm:"not null;index:idx_owner_long_url" json:"long_url"`
	OwnerID     string     `gorm:"size:64;not null;index;index:idx_owner_long_url" json:"owner_id"`
	Title       string     `gorm:"size:255" json:"title"`
	Description string     `gorm:"size:500" json:"description,omitempty"`
	QRCode      string     `gorm:"column:qr_code;type:text" json:"qr_code,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	ClickCount  int64      `gorm:"not null;default:0" json:"click_count"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the link has an expiry date at or before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// LinkListFilter narrows an owner's link listing. Search is a case-insensitive
// substring over the long URL, short code, title and description.
type LinkListFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
}

// LinkPage is one page of an owner's links, newest first.
type LinkPage struct {
	Items      []Link `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Total      int64  `json:"total"`
	TotalPages int    `json:"total_pages"`
}
