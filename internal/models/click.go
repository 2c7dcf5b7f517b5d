package models

import (
	"net/http"
	"time"
)

// Unknown is stored in place of any enrichment field that could not be resolved.
const Unknown = "unknown"

// DirectReferer is stored when the request carried no Referer header.
const DirectReferer = "direct"

// Click represents one resolution of a shortened link, enriched at record time.
// Enrichment columns are lowercase and never empty: they fall back to Unknown.
type Click struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// LinkID est indexé car toutes les agrégations filtrent sur l'ensemble des liens d'un propriétaire.
	LinkID uint `gorm:"index;not null" json:"link_id"`

	// Timestamp is the moment the redirect was served, stored in UTC.
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`

	City    string `gorm:"size:100;not null" json:"city"`
	Country string `gorm:"size:100;not null;index" json:"country"`
	Device  string `gorm:"size:30;not null;index" json:"device"`
	Browser string `gorm:"size:50;not null" json:"browser"`
	OS      string `gorm:"column:os;size:50;not null" json:"os"`

	IPAddress string `gorm:"size:50" json:"ip_address"`
	Referer   string `gorm:"size:2048;not null" json:"referer"`
	UserAgent string `gorm:"size:512" json:"user_agent"`
}

// RequestMetadata is the part of an inbound redirect request click recording needs.
// It is copied out of the HTTP request so it can safely outlive it.
type RequestMetadata struct {
	Headers    http.Header
	RemoteAddr string
	UserAgent  string
	Referer    string
}

// ClickEvent represents a raw click event intended to be passed through channels.
// Workers turn it into an enriched Click.
type ClickEvent struct {
	LinkID    uint
	Timestamp time.Time
	Request   RequestMetadata
}
