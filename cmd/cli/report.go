package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/services"
)

var (
	reportOwnerFlag     string
	reportRangeFlag     string
	reportDashboardFlag bool
)

// ReportCmd prints an owner's analytics overview, or dashboard, as JSON.
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the analytics overview of an owner as JSON",
	RunE: func(c *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if reportDashboardFlag {
			dashboard, err := a.analytics.Dashboard(c.Context(), reportOwnerFlag)
			if err != nil {
				return err
			}
			return printJSON(dashboard)
		}

		filter, err := services.ParseTimeRange(reportRangeFlag, time.Now())
		if err != nil {
			return err
		}
		overview, err := a.analytics.Overview(c.Context(), reportOwnerFlag, filter)
		if err != nil {
			return err
		}
		return printJSON(overview)
	},
}

func init() {
	ReportCmd.Flags().StringVar(&reportOwnerFlag, "owner", services.AnonymousOwner, "Owner whose links are reported")
	ReportCmd.Flags().StringVar(&reportRangeFlag, "range", services.DefaultTimeRange, "Time range: 7d, 30d, 90d, 1y or all")
	ReportCmd.Flags().BoolVar(&reportDashboardFlag, "dashboard", false, "Print the dashboard instead of the overview")
	cmd.RootCmd.AddCommand(ReportCmd)
}
