package commands

import (
	"fmt"

	"github.com/huddle/server/internal/cli/api"
	"github.com/huddle/server/internal/cli/config"
	"github.com/huddle/server/internal/cli/output"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Clear(); err != nil {
			return fmt.Errorf("clearing config: %w", err)
		}
		fmt.Fprintln(output.Out, "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.User]
		if err := apiClient.Get("/auth/me", nil, &resp); err != nil {
			return wrapAuthError("fetching user", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.UserInfo(resp.Data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
