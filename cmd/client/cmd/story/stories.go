package story

import (
	"github.com/spf13/cobra"
)

// StoryCmd is the parent command for browsing and sharing stories.
var StoryCmd = &cobra.Command{
	Use:   "story",
	Short: "Browse and share stories",
	Long: `List, read and create stories.

Reads serve from the local cache when the service is unreachable. Stories
created offline are queued and uploaded automatically later.`,
}
