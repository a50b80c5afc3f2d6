package cmd

import (
	"fmt"

	"github.com/authgate/cli/internal/api"
	"github.com/authgate/cli/internal/output"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		var user *api.User
		err := withSession(func() error {
			var err error
			user, err = apiClient.Profile()
			return err
		})
		if err != nil {
			return fmt.Errorf("fetching profile: %w", err)
		}

		if flagJSON {
			output.JSON(user)
			return nil
		}
		output.UserInfo(*user)
		return nil
	},
}

var profileFlags struct {
	username  string
	firstName string
	lastName  string
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update username or name",
	RunE: func(cmd *cobra.Command, args []string) error {
		var update api.ProfileUpdate
		if cmd.Flags().Changed("username") {
			update.Username = &profileFlags.username
		}
		if cmd.Flags().Changed("first-name") {
			update.FirstName = &profileFlags.firstName
		}
		if cmd.Flags().Changed("last-name") {
			update.LastName = &profileFlags.lastName
		}
		if update == (api.ProfileUpdate{}) {
			return fmt.Errorf("nothing to update, pass --username, --first-name or --last-name")
		}

		var user *api.User
		err := withSession(func() error {
			var err error
			user, err = apiClient.UpdateProfile(update)
			return err
		})
		if err != nil {
			return fmt.Errorf("updating profile: %w", err)
		}

		if flagJSON {
			output.JSON(user)
			return nil
		}
		output.UserInfo(*user)
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileFlags.username, "username", "", "New username")
	profileCmd.Flags().StringVar(&profileFlags.firstName, "first-name", "", "New first name")
	profileCmd.Flags().StringVar(&profileFlags.lastName, "last-name", "", "New last name")
	rootCmd.AddCommand(whoamiCmd, profileCmd)
}
