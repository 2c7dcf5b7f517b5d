package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/api"
	"github.com/axellelanca/clicktrail/internal/cache"
	"github.com/axellelanca/clicktrail/internal/config"
	"github.com/axellelanca/clicktrail/internal/database"
	"github.com/axellelanca/clicktrail/internal/geo"
	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/monitor"
	"github.com/axellelanca/clicktrail/internal/repository"
	"github.com/axellelanca/clicktrail/internal/services"
	"github.com/axellelanca/clicktrail/internal/shortcode"
	"github.com/axellelanca/clicktrail/internal/workers"
)

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Lance le serveur API de raccourcissement d'URLs et les processus de fond.",
	Long: `Cette commande initialise la base de données, configure les caches et la chaîne
de géolocalisation, démarre les workers de clics et le moniteur d'expiration,
puis lance le serveur HTTP.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cmd.Cfg)
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := cmd.OpenDatabase()
	if err != nil {
		return fmt.Errorf("échec de l'initialisation de la base de données : %w", err)
	}
	defer database.Close(db)

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	logging.Info().Msg("Repositories initialisés.")

	// Redis est optionnel : sans adresse, les caches sont désactivés.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logging.Warn().Err(err).Msg("Redis indisponible, caches désactivés")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	linkCache := cache.NewLinkCache(redisClient, cfg.Redis.LinkTTL)

	generator := shortcode.NewGenerator(linkRepo, cfg.Shortener.CodeLength, cfg.Shortener.MaxAttempts)
	linkService := services.NewLinkService(linkRepo, generator, linkCache)
	analyticsService := services.NewAnalyticsService(linkRepo, clickRepo, cfg.Analytics.MaxConcurrentQueries)
	logging.Info().Msg("Services métiers initialisés.")

	resolver := newResolver(cfg, redisClient)
	discoverer := geo.NewDiscoverer(geo.NewHTTPClient(), cfg.Geo.Timeout)
	recorder := services.NewClickRecorder(clickRepo, linkRepo, resolver, discoverer, cfg.Analytics.EnrichTimeout)

	clickPool := workers.NewClickPool(recorder, cfg.Analytics.BufferSize, cfg.Analytics.RecordTimeout)
	clickPool.Start(cfg.Analytics.WorkerCount)
	logging.Info().Int("buffer", cfg.Analytics.BufferSize).Int("workers", cfg.Analytics.WorkerCount).
		Msg("Pool de workers de clics démarré.")

	// Le moniteur s'arrête avec le contexte du signal.
	interval := time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute
	go monitor.NewExpiryMonitor(linkRepo, linkCache, interval).Start(ctx)
	logging.Info().Dur("interval", interval).Msg("Moniteur d'expiration démarré.")

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Dependencies{
		Links:     linkService,
		Analytics: analyticsService,
		Clicks:    clickPool,
		BaseURL:   cfg.Server.BaseURL,
		JWTSecret: cfg.Auth.JWTSecret,
	})
	if err != nil {
		return fmt.Errorf("échec de la configuration des routes : %w", err)
	}
	logging.Info().Msg("Routes API configurées.")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("Démarrage du serveur")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = clickPool.Stop(context.Background())
			return fmt.Errorf("échec du démarrage du serveur : %w", err)
		}
	case <-ctx.Done():
		logging.Info().Msg("Signal d'arrêt reçu. Arrêt du serveur...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Arrêt forcé du serveur HTTP")
	}
	// Plus aucune redirection n'arrive : on vide la file de clics.
	if err := clickPool.Stop(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Des clics en file n'ont pas été enregistrés")
	}

	logging.Info().Msg("Serveur arrêté proprement.")
	return nil
}

// newResolver assemble la chaîne ip-api -> ipgeolocation -> ipstack, chaque
// fournisseur protégé par un limiteur de quota et un disjoncteur.
func newResolver(cfg *config.Config, redisClient *redis.Client) *geo.Resolver {
	client := geo.NewHTTPClient()
	guard := geo.GuardConfig{
		RequestsPerMinute: cfg.Geo.RequestsPerMin,
		FailureThreshold:  uint32(cfg.Geo.BreakerFailures),
		Cooldown:          cfg.Geo.BreakerCooldown,
	}

	resolver := geo.NewResolver(cfg.Geo.Timeout,
		geo.Guard(geo.NewIPAPI(client, geo.DefaultIPAPIURL), guard),
		geo.Guard(geo.NewIPGeolocation(client, geo.DefaultIPGeolocationURL, cfg.Geo.IPGeolocationKey), guard),
		geo.Guard(geo.NewIPStack(client, geo.DefaultIPStackURL, cfg.Geo.IPStackKey), guard),
	)
	if redisClient != nil {
		resolver.WithCache(cache.NewGeoCache(redisClient, cfg.Geo.CacheTTL))
	}
	return resolver
}
