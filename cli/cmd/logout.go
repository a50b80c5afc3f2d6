package cmd

import (
	"fmt"
	"os"

	"github.com/authgate/cli/internal/config"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.HasSession() {
			// The server always accepts logout; a failure here only means
			// the refresh token could not be revoked remotely.
			if err := apiClient.Logout(cfg.RefreshToken); err != nil {
				fmt.Fprintln(os.Stderr, "Warning: server logout failed:", err)
			}
		}

		cfg.ClearSession()
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
