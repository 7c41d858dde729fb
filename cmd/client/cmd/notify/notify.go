package notify

import (
	"github.com/spf13/cobra"
)

// NotifyCmd is the parent command for web-push notifications.
var NotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Web-push notifications",
	Long: `Subscribe to push notifications from the story service and decode
received push messages.`,
}
