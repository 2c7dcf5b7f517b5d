package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
)

// MigrateCmd represents the 'migrate' command
// This command handles database schema creation and updates
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Executes database migrations to create or update tables.",
	Long: `This command connects to the configured database (SQLite)
and executes GORM automatic migrations to create the 'links' and 'clicks' tables
and their indexes based on the Go models.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.close()

		fmt.Printf("Database migrations executed successfully on %s.\n", cmd.Cfg.Database.Name)
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
