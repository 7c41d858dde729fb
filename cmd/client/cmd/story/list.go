// cmd/client/cmd/story/list.go
package story

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/domain/story"
)

var listFormat string

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories",
	Long: `Show the story feed, newest first.

Online the feed is refreshed from the service; offline the cached feed is
shown instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		stories, err := app.Sync.ReadStories(cmd.Context())
		if err != nil {
			return fmt.Errorf("read stories: %w", err)
		}

		switch listFormat {
		case "json":
			return printStoriesJSON(stories)
		case "table":
			return printStoriesTable(app, stories)
		default:
			return printStoriesSimple(app, stories)
		}
	},
}

func printStoriesSimple(app *client.App, stories []*story.Story) error {
	if len(stories) == 0 {
		fmt.Println("No stories yet")
		return nil
	}

	fmt.Printf("Stories: %d\n\n", len(stories))

	for i, st := range stories {
		marker := " "
		if app.Favorites.IsFavorite(st.ID) {
			marker = "★"
		}
		pending := ""
		if story.IsTempID(st.ID) {
			pending = color.YellowString(" (pending upload)")
		}

		fmt.Printf("%d. %s %s%s\n", i+1, marker, st.Name, pending)
		fmt.Printf("   %s\n", st.Description)
		fmt.Printf("   ID: %s | Created: %s\n", st.ID, st.CreatedAt.Format("2006-01-02 15:04"))
		if st.Lat != nil && st.Lon != nil {
			fmt.Printf("   Location: %.5f, %.5f\n", *st.Lat, *st.Lon)
		}
		fmt.Println()
	}
	return nil
}

func printStoriesTable(app *client.App, stories []*story.Story) error {
	if len(stories) == 0 {
		fmt.Println("No stories yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tName\tFav\tStatus\tCreated\t\n")
	fmt.Fprintf(w, "---\t---\t---\t---\t---\t\n")

	for _, st := range stories {
		fav := ""
		if app.Favorites.IsFavorite(st.ID) {
			fav = "★"
		}
		status := "synced"
		if story.IsTempID(st.ID) {
			status = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			st.ID, st.Name, fav, status, st.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func printStoriesJSON(stories []*story.Story) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stories)
}

func init() {
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "simple", "output format (simple|table|json)")
}
