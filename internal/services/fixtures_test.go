package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/axellelanca/clicktrail/internal/database"
	"github.com/axellelanca/clicktrail/internal/models"
	"github.com/axellelanca/clicktrail/internal/repository"
)

var dbSeq atomic.Int64

type stores struct {
	db     *gorm.DB
	links  *repository.GormLinkRepository
	clicks *repository.GormClickRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	name := fmt.Sprintf("services_%d_%s", dbSeq.Add(1), strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.OpenMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return stores{
		db:     db,
		links:  repository.NewLinkRepository(db),
		clicks: repository.NewClickRepository(db),
	}
}

func (s stores) link(t *testing.T, owner, code string) *models.Link {
	t.Helper()
	l := &models.Link{
		ShortCode: code,
		LongURL:   "https://example.com/" + code,
		OwnerID:   owner,
		Title:     "Title " + code,
		IsActive:  true,
	}
	require.NoError(t, s.links.CreateLink(context.Background(), l))
	return l
}

type clickOpt func(*models.Click)

func at(ts time.Time) clickOpt { return func(c *models.Click) { c.Timestamp = ts.UTC() } }
func from(country, city string) clickOpt {
	return func(c *models.Click) { c.Country, c.City = country, city }
}
func on(device, browser string) clickOpt {
	return func(c *models.Click) { c.Device, c.Browser = device, browser }
}
func via(referer string) clickOpt { return func(c *models.Click) { c.Referer = referer } }

func (s stores) clicksFor(t *testing.T, linkID uint, n int, opts ...clickOpt) {
	t.Helper()
	for i := 0; i < n; i++ {
		c := &models.Click{
			LinkID:    linkID,
			Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			City:      models.Unknown,
			Country:   models.Unknown,
			Device:    "desktop",
			Browser:   "chrome",
			OS:        "windows",
			IPAddress: models.Unknown,
			Referer:   models.DirectReferer,
		}
		for _, opt := range opts {
			opt(c)
		}
		require.NoError(t, s.clicks.CreateClick(context.Background(), c))
	}
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d.Add(12 * time.Hour)
}
