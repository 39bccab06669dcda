package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the automation API token",
		Long: `Manage the bearer token that authenticates automation API clients.
The token is created on first use and kept in the configured token store.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenManager().Token()
			if err != nil {
				return fmt.Errorf("failed to load API token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate",
		Short: "Replace the API token, invalidating the old one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenManager().Regenerate()
			if err != nil {
				return fmt.Errorf("failed to regenerate API token: %w", err)
			}
			GetZapLogger().Info("API token regenerated", zap.String("store", cfg.API.TokenStore))
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	})

	return cmd
}
