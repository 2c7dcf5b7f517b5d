package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/axellelanca/clicktrail/cmd"
	"github.com/axellelanca/clicktrail/internal/api"
)

var (
	tokenOwnerFlag string
	tokenTTLFlag   time.Duration
)

// TokenCmd issues a bearer token for the API, signed with auth.jwt_secret.
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for an owner",
	RunE: func(_ *cobra.Command, _ []string) error {
		if cmd.Cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set, the API runs without authentication")
		}
		token, err := api.IssueToken(cmd.Cfg.Auth.JWTSecret, tokenOwnerFlag, tokenTTLFlag)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	TokenCmd.Flags().StringVar(&tokenOwnerFlag, "owner", "", "Owner the token authenticates")
	TokenCmd.Flags().DurationVar(&tokenTTLFlag, "ttl", 24*time.Hour, "Token lifetime")
	_ = TokenCmd.MarkFlagRequired("owner")
	cmd.RootCmd.AddCommand(TokenCmd)
}
