package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/ressona/internal/config"
	"github.com/templui/ressona/internal/identity"
)

func TokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a custom sign-in token for a user",
		Long:  "Mint a custom token that POST /api/auth/token exchanges for a session as the given user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			provider := identity.NewProvider(cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction(), cfg.AppName)

			token, err := provider.IssueCustomToken(args[0], ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "how long the token can be exchanged")
	return cmd
}
