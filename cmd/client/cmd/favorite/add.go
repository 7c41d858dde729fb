// cmd/client/cmd/favorite/add.go
package favorite

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var AddCmd = &cobra.Command{
	Use:   "add <story-id>",
	Short: "Add a story to favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		if app.Favorites.IsFavorite(args[0]) {
			fmt.Println("Already a favorite")
			return nil
		}

		st, err := app.Sync.GetStory(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load story: %w", err)
		}

		if err := app.Favorites.Add(cmd.Context(), st); err != nil {
			return fmt.Errorf("add favorite: %w", err)
		}

		color.Green("★ Added %q to favorites", st.Name)
		return nil
	},
}
