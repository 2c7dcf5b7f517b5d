package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/models"
	"github.com/axellelanca/clicktrail/internal/services"
)

var statsRangeFlag string

// StatsCmd représente la commande 'stats'
var StatsCmd = &cobra.Command{
	Use:   "stats [short-code]",
	Short: "Get statistics for a short URL",
	Long:  `Get click statistics for the provided short code over a time range (7d, 30d, 90d, 1y or all).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	StatsCmd.Flags().StringVar(&statsRangeFlag, "range", services.DefaultTimeRange, "Time range: 7d, 30d, 90d, 1y or all")
	cmd.RootCmd.AddCommand(StatsCmd)
}

// runStats exécute la logique pour la commande stats
func runStats(c *cobra.Command, args []string) error {
	filter, err := services.ParseTimeRange(statsRangeFlag, time.Now())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	link, err := a.links.FindByCode(c.Context(), strings.ToLower(args[0]))
	if err != nil {
		return fmt.Errorf("short code '%s': %w", args[0], err)
	}

	report, err := a.analytics.LinkAnalytics(c.Context(), link.OwnerID, link.ID, filter, models.Pagination{})
	if err != nil {
		return fmt.Errorf("error retrieving statistics: %w", err)
	}

	fmt.Printf("Statistiques pour le code court: %s (%s)\n", link.ShortCode, statsRangeFlag)
	fmt.Printf("URL longue: %s\n", link.LongURL)
	fmt.Printf("Total de clics (compteur): %d\n", link.ClickCount)
	fmt.Printf("Clics sur la période: %d\n", report.TotalClicks)
	fmt.Printf("Date de création: %s\n", link.CreatedAt.Format("2006-01-02 15:04:05"))
	printFacet("Pays", report.TopCountries)
	printFacet("Appareils", report.TopDevices)
	printFacet("Navigateurs", report.TopBrowsers)
	printFacet("Referers", report.TopReferers)
	return nil
}

func printFacet(title string, entries []models.FacetEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, e := range entries {
		fmt.Printf("  %-24s %6d  %3d%%\n", e.Name, e.Clicks, e.Percentage)
	}
}
