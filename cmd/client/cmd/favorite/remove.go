// cmd/client/cmd/favorite/remove.go
package favorite

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var RemoveCmd = &cobra.Command{
	Use:   "remove <story-id>",
	Short: "Remove a story from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		if !app.Favorites.IsFavorite(args[0]) {
			fmt.Println("Not a favorite")
			return nil
		}

		if err := app.Favorites.Remove(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove favorite: %w", err)
		}

		color.Green("✓ Removed from favorites")
		return nil
	},
}
