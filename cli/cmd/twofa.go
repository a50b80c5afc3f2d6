package cmd

import (
	"fmt"

	"github.com/authgate/cli/internal/api"
	"github.com/authgate/cli/internal/output"
	"github.com/spf13/cobra"
)

var twoFactorCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage two-factor authentication",
}

var twoFactorSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a TOTP secret and a fresh set of backup codes",
	Long: `Create a TOTP secret (kept if one already exists) and replace the
backup codes. Add the secret to an authenticator app, then run
"authgate 2fa enable" with the code it shows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var setup *api.TwoFactorSetup
		err := withSession(func() error {
			var err error
			setup, err = apiClient.SetupTwoFactor()
			return err
		})
		if err != nil {
			return fmt.Errorf("starting 2FA setup: %w", err)
		}

		if flagJSON {
			output.JSON(setup)
			return nil
		}
		output.TwoFactorSetup(*setup)
		return nil
	},
}

var twoFactorEnableCmd = &cobra.Command{
	Use:   "enable [code]",
	Short: "Confirm the authenticator code and turn 2FA on",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := ""
		if len(args) == 1 {
			code = args[0]
		}
		code, err := valueOrPrompt(code, "2FA code", false)
		if err != nil {
			return err
		}

		var user *api.User
		err = withSession(func() error {
			var err error
			user, err = apiClient.EnableTwoFactor(code, flagBackupCode)
			return err
		})
		if err != nil {
			return fmt.Errorf("enabling 2FA: %w", err)
		}

		if flagJSON {
			output.JSON(user)
			return nil
		}
		fmt.Println("Two-factor authentication enabled.")
		return nil
	},
}

var twoFactorDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn 2FA off and discard the secret and backup codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptSecret("Password")
		if err != nil {
			return err
		}

		var user *api.User
		err = withSession(func() error {
			var err error
			user, err = apiClient.DisableTwoFactor(password)
			return err
		})
		if err != nil {
			return fmt.Errorf("disabling 2FA: %w", err)
		}

		if flagJSON {
			output.JSON(user)
			return nil
		}
		fmt.Println("Two-factor authentication disabled.")
		return nil
	},
}

func init() {
	twoFactorEnableCmd.Flags().BoolVar(&flagBackupCode, "backup-code", false, "Treat the code as a backup code")
	twoFactorCmd.AddCommand(twoFactorSetupCmd, twoFactorEnableCmd, twoFactorDisableCmd)
	rootCmd.AddCommand(twoFactorCmd)
}
