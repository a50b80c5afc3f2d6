package cmd

import (
	"errors"
	"fmt"

	"github.com/authgate/cli/internal/api"
	"github.com/authgate/cli/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagEmail      string
	flagCode       string
	flagBackupCode bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your AuthGate server",
	Long: `Sign in with email and password. When two-factor authentication is
enabled the CLI asks for the current authenticator code.

  authgate login --email alice@x.com
  authgate login --email alice@x.com --code 123456
  authgate login --email alice@x.com --backup-code --code ABCD1234`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&flagCode, "code", "", "2FA code, used when the server asks for one")
	loginCmd.Flags().BoolVar(&flagBackupCode, "backup-code", false, "Treat --code as a backup code")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, err := valueOrPrompt(flagEmail, "Email", false)
	if err != nil {
		return err
	}
	password, err := promptSecret("Password")
	if err != nil {
		return err
	}

	resp, err := apiClient.Login(email, password)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 400 {
			return fmt.Errorf("login failed: %s", apiErr.Message)
		}
		return fmt.Errorf("logging in: %w", err)
	}

	if resp.Requires2FA {
		prompt := "2FA code"
		if flagBackupCode {
			prompt = "Backup code"
		}
		code, err := valueOrPrompt(flagCode, prompt, false)
		if err != nil {
			return err
		}
		resp, err = apiClient.VerifyLogin(email, code, flagBackupCode)
		if err != nil {
			return fmt.Errorf("verifying 2FA code: %w", err)
		}
	}
	if resp.Tokens == nil {
		return fmt.Errorf("server did not issue tokens")
	}

	if err := saveSession(email, resp.Tokens); err != nil {
		return err
	}

	if flagJSON {
		output.JSON(resp.User)
		return nil
	}
	if resp.User != nil {
		fmt.Printf("Logged in as %s %s (%s)\n", resp.User.FirstName, resp.User.LastName, resp.User.Email)
	} else {
		fmt.Println("Logged in successfully.")
	}
	return nil
}
