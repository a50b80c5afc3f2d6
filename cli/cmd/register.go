package cmd

import (
	"fmt"

	"github.com/authgate/cli/internal/api"
	"github.com/authgate/cli/internal/output"
	"github.com/spf13/cobra"
)

var registerFlags api.RegisterRequest

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := registerFlags
		var err error
		if req.Email, err = valueOrPrompt(req.Email, "Email", false); err != nil {
			return err
		}
		if req.Username, err = valueOrPrompt(req.Username, "Username", false); err != nil {
			return err
		}
		if req.FirstName, err = valueOrPrompt(req.FirstName, "First name", false); err != nil {
			return err
		}
		if req.LastName, err = valueOrPrompt(req.LastName, "Last name", false); err != nil {
			return err
		}
		if req.Password, err = promptSecret("Password"); err != nil {
			return err
		}
		if req.PasswordConfirm, err = promptSecret("Confirm password"); err != nil {
			return err
		}

		resp, err := apiClient.Register(req)
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		if resp.Tokens != nil {
			if err := saveSession(req.Email, resp.Tokens); err != nil {
				return err
			}
		}

		if flagJSON {
			output.JSON(resp.User)
			return nil
		}
		fmt.Printf("Registered and signed in as %s\n", req.Email)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerFlags.Email, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerFlags.Username, "username", "", "Username")
	registerCmd.Flags().StringVar(&registerFlags.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerFlags.LastName, "last-name", "", "Last name")
	rootCmd.AddCommand(registerCmd)
}
