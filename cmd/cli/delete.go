package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/services"
)

var deleteOwnerFlag string

// DeleteCmd removes a link and its clicks.
var DeleteCmd = &cobra.Command{
	Use:   "delete [short-code]",
	Short: "Delete a short link and all of its recorded clicks",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		link, err := a.links.FindByCode(c.Context(), strings.ToLower(args[0]))
		if err != nil {
			return fmt.Errorf("short code '%s': %w", args[0], err)
		}
		if err := a.linkSvc.DeleteLink(c.Context(), deleteOwnerFlag, link.ID); err != nil {
			return err
		}

		fmt.Printf("Lien %s supprimé (%d clics).\n", link.ShortCode, link.ClickCount)
		return nil
	},
}

func init() {
	DeleteCmd.Flags().StringVar(&deleteOwnerFlag, "owner", services.AnonymousOwner, "Owner of the link")
	cmd.RootCmd.AddCommand(DeleteCmd)
}
