package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/services"
)

var (
	longURLFlag   string
	aliasFlag     string
	titleFlag     string
	descFlag      string
	qrFlag        bool
	ownerFlag     string
	expiresInFlag time.Duration
)

// CreateCmd représente la commande 'create'
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Crée une URL courte à partir d'une URL longue.",
	Long: `Cette commande raccourcit une URL longue fournie et affiche le code court généré.

Exemple:
  clicktrail create --url="https://www.google.com/search?q=go+lang" --alias=golang --expires-in=72h`,
	RunE: func(c *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		in := services.CreateLinkInput{
			LongURL:     longURLFlag,
			OwnerID:     ownerFlag,
			Title:       titleFlag,
			Description: descFlag,
			CustomAlias: aliasFlag,
			QREnabled:   qrFlag,
		}
		if expiresInFlag > 0 {
			expiresAt := time.Now().Add(expiresInFlag)
			in.ExpiresAt = &expiresAt
		}

		link, err := a.linkSvc.CreateLink(c.Context(), in)
		if err != nil {
			return fmt.Errorf("failed to create short link: %w", err)
		}

		fmt.Printf("URL courte créée avec succès:\n")
		fmt.Printf("Code: %s\n", link.ShortCode)
		fmt.Printf("URL complète: %s/%s\n", strings.TrimRight(cmd.Cfg.Server.BaseURL, "/"), link.ShortCode)
		if link.QRCode != "" {
			fmt.Printf("QR code: %s\n", link.QRCode)
		}
		if link.ExpiresAt != nil {
			fmt.Printf("Expire le: %s\n", link.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVar(&longURLFlag, "url", "", "The long URL to shorten")
	CreateCmd.Flags().StringVar(&aliasFlag, "alias", "", "Custom alias (1-32 chars: letters, digits, '-' or '_')")
	CreateCmd.Flags().StringVar(&titleFlag, "title", "", "Link title (defaults to the URL host)")
	CreateCmd.Flags().StringVar(&descFlag, "description", "", "Link description (up to 500 chars)")
	CreateCmd.Flags().BoolVar(&qrFlag, "qr", false, "Generate a PNG QR code of the long URL")
	CreateCmd.Flags().StringVar(&ownerFlag, "owner", services.AnonymousOwner, "Owner of the link")
	CreateCmd.Flags().DurationVar(&expiresInFlag, "expires-in", 0, "Lifetime of the link, e.g. 24h (0 never expires)")

	_ = CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
