package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagCurrentPassword bool

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change or reset your password",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the password of the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		var current string
		var err error
		if flagCurrentPassword {
			if current, err = promptSecret("Current password"); err != nil {
				return err
			}
		}
		newPassword, confirm, err := promptNewPassword()
		if err != nil {
			return err
		}

		err = withSession(func() error {
			return apiClient.ChangePassword(current, newPassword, confirm)
		})
		if err != nil {
			return fmt.Errorf("changing password: %w", err)
		}
		fmt.Println("Password changed. Sessions started before now can no longer refresh.")
		return nil
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset [email]",
	Short: "Email a password reset link",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := cfg.Email
		if len(args) == 1 {
			email = args[0]
		}
		email, err := valueOrPrompt(email, "Email", false)
		if err != nil {
			return err
		}
		if err := apiClient.RequestPasswordReset(email); err != nil {
			return fmt.Errorf("requesting password reset: %w", err)
		}
		fmt.Printf("Reset link sent to %s.\n", email)
		return nil
	},
}

var passwordResetConfirmCmd = &cobra.Command{
	Use:   "reset-confirm <token>",
	Short: "Set a new password with the token from the reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newPassword, confirm, err := promptNewPassword()
		if err != nil {
			return err
		}
		if err := apiClient.ConfirmPasswordReset(args[0], newPassword, confirm); err != nil {
			return fmt.Errorf("resetting password: %w", err)
		}
		fmt.Println("Password reset. You can now log in with the new password.")
		return nil
	},
}

func promptNewPassword() (string, string, error) {
	newPassword, err := promptSecret("New password")
	if err != nil {
		return "", "", err
	}
	confirm, err := promptSecret("Confirm new password")
	if err != nil {
		return "", "", err
	}
	return newPassword, confirm, nil
}

func init() {
	passwordChangeCmd.Flags().BoolVar(&flagCurrentPassword, "current", false, "Ask for the current password (required by servers that check it)")
	passwordCmd.AddCommand(passwordChangeCmd, passwordResetCmd, passwordResetConfirmCmd)
	rootCmd.AddCommand(passwordCmd)
}
