package cmd

import (
	"fmt"
	"os"

	"github.com/authgate/cli/internal/api"
	"github.com/authgate/cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagJSON      bool
	flagServerURL string

	cfg       *config.Config
	apiClient *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "authgate",
	Short: "AuthGate CLI: manage your account from the terminal",
	Long: `AuthGate CLI signs you in to an AuthGate server and manages your
account, two-factor authentication and password.

Get started:
  authgate register           Create an account
  authgate login              Sign in (prompts for a 2FA code when enabled)
  authgate whoami             Show the signed-in user
  authgate 2fa setup          Start two-factor enrolment`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagServerURL != "" {
			cfg.ServerURL = flagServerURL
		}
		apiClient = api.NewClient(cfg.ServerURL, cfg.AccessToken)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Override server URL (default: from config or http://localhost:8000)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// requireAuth is a helper that returns an error if no session is stored.
func requireAuth() error {
	if cfg == nil || !cfg.HasSession() {
		return fmt.Errorf("not authenticated, run \"authgate login\" first")
	}
	return nil
}

// withSession runs call and, when the access token has expired, exchanges
// the stored refresh token once and retries.
func withSession(call func() error) error {
	if err := requireAuth(); err != nil {
		return err
	}
	err := call()
	if !api.IsUnauthorized(err) || cfg.RefreshToken == "" {
		return err
	}

	access, refreshErr := apiClient.Refresh(cfg.RefreshToken)
	if refreshErr != nil {
		if api.IsUnauthorized(refreshErr) {
			return fmt.Errorf("session expired, run \"authgate login\" again")
		}
		return fmt.Errorf("refreshing session: %w", refreshErr)
	}
	cfg.SetTokens(access, "")
	apiClient.Token = access
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return call()
}

// saveSession stores the tokens from a successful login or registration.
func saveSession(email string, tokens *api.TokenPair) error {
	cfg.Email = email
	cfg.SetTokens(tokens.Access, tokens.Refresh)
	apiClient.Token = tokens.Access
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
