// cmd/client/cmd/story/get.go
package story

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/domain/story"
)

var GetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one story",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		st, err := app.Sync.GetStory(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get story: %w", err)
		}

		fmt.Printf("%s\n", color.New(color.Bold).Sprint(st.Name))
		if story.IsTempID(st.ID) {
			color.Yellow("pending upload")
		}
		fmt.Println()
		fmt.Println(st.Description)
		fmt.Println()
		fmt.Printf("ID:      %s\n", st.ID)
		fmt.Printf("Created: %s\n", st.CreatedAt.Format("2006-01-02 15:04:05"))
		if st.PhotoURL != "" {
			fmt.Printf("Photo:   %s\n", st.PhotoURL)
		}
		if st.Lat != nil && st.Lon != nil {
			fmt.Printf("Location: %.5f, %.5f\n", *st.Lat, *st.Lon)
		}
		if app.Favorites.IsFavorite(st.ID) {
			fmt.Println("★ favorited")
		}
		return nil
	},
}
