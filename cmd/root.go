package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/axellelanca/clicktrail/internal/config"
	"github.com/axellelanca/clicktrail/internal/database"
	"github.com/axellelanca/clicktrail/internal/logging"
)

// Cfg is the global variable that will contain the loaded configuration
// It will be accessible to all Cobra commands throughout the application
var Cfg *config.Config

// RootCmd is the base command for the CLI application
// All other commands (run-server, create, stats, report, delete, migrate, token) are added as subcommands
var RootCmd = &cobra.Command{
	Use:   "clicktrail",
	Short: "A URL shortener with click analytics",
	Long: `clicktrail shortens URLs, records every redirect with its location,
device and referer, and reports aggregate click analytics per owner and per link.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the Cobra application
// It is called from 'main.go' and handles command execution and error handling
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// init() is a special Go function that executes automatically before main()
// Commands register themselves via their own init() functions to avoid import cycles.
func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig loads the configuration, then reconfigures the logger from it.
// It runs at the beginning of every Cobra command execution.
func initConfig() {
	var err error
	Cfg, err = config.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logging.Init(logging.Config{
		Level:      Cfg.Log.Level,
		Format:     Cfg.Log.Format,
		File:       Cfg.Log.File,
		MaxSizeMB:  Cfg.Log.MaxSizeMB,
		MaxBackups: Cfg.Log.MaxBackups,
		MaxAgeDays: Cfg.Log.MaxAgeDays,
	}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize logging")
	}
}

// OpenDatabase opens the configured SQLite database and applies the schema.
func OpenDatabase() (*gorm.DB, error) {
	db, err := database.Open(Cfg.Database.Name, Cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}
