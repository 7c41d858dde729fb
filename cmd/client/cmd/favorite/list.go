// cmd/client/cmd/favorite/list.go
package favorite

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var listJSON bool

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite stories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		stories, err := app.Favorites.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list favorites: %w", err)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stories)
		}

		if len(stories) == 0 {
			fmt.Println("No favorites yet")
			return nil
		}

		fmt.Printf("Favorites: %d\n\n", len(stories))
		for i, st := range stories {
			fmt.Printf("%d. ★ %s\n", i+1, st.Name)
			fmt.Printf("   %s\n", st.Description)
			fmt.Printf("   ID: %s\n\n", st.ID)
		}
		return nil
	},
}

func init() {
	ListCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}
