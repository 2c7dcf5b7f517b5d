package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/cache"
	"github.com/axellelanca/clicktrail/internal/database"
	"github.com/axellelanca/clicktrail/internal/repository"
	"github.com/axellelanca/clicktrail/internal/services"
	"github.com/axellelanca/clicktrail/internal/shortcode"
)

// app regroupe ce dont les commandes hors serveur ont besoin.
// La CLI n'utilise pas Redis : le cache des liens est un noop.
type app struct {
	links     *repository.GormLinkRepository
	linkSvc   *services.LinkService
	analytics *services.AnalyticsService
	close     func()
}

func openApp() (*app, error) {
	db, err := cmd.OpenDatabase()
	if err != nil {
		return nil, err
	}

	cfg := cmd.Cfg
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	generator := shortcode.NewGenerator(linkRepo, cfg.Shortener.CodeLength, cfg.Shortener.MaxAttempts)

	return &app{
		links:     linkRepo,
		linkSvc:   services.NewLinkService(linkRepo, generator, cache.NoopLinkCache{}),
		analytics: services.NewAnalyticsService(linkRepo, clickRepo, cfg.Analytics.MaxConcurrentQueries),
		close:     func() { _ = database.Close(db) },
	}, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
