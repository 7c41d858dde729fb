package favorite

import (
	"github.com/spf13/cobra"
)

// FavoriteCmd is the parent command for the local favorites collection.
var FavoriteCmd = &cobra.Command{
	Use:   "favorite",
	Short: "Manage favorite stories",
	Long: `Mark stories as favorites and browse the collection.

Favorites are stored locally and survive cache refreshes; they are never
synced to the service.`,
}
