// cmd/client/cmd/auth/logout.go
package auth

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear the cached session",
	Long: `Drop the stored session token and the local story cache.

Stories queued for upload while offline are kept and replayed after the next
login.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		if !app.Sync.LoggedIn() {
			fmt.Println("Not logged in")
			return nil
		}

		if err := app.Sync.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		color.Green("✓ Logged out")
		return nil
	},
}
