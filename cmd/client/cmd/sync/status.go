// cmd/client/cmd/sync/status.go
package sync

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the queued offline actions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		actions, err := app.Sync.Outbox(cmd.Context())
		if err != nil {
			return fmt.Errorf("read outbox: %w", err)
		}

		if app.Sync.LoggedIn() {
			fmt.Printf("Logged in as: %s\n", app.Sync.UserName(cmd.Context()))
		} else {
			fmt.Println("Not logged in")
		}

		if len(actions) == 0 {
			fmt.Println("Outbox is empty")
			return nil
		}

		fmt.Printf("Queued actions: %d\n\n", len(actions))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Queued at\tType\tStatus\t\n")
		fmt.Fprintf(w, "---\t---\t---\t\n")
		for _, a := range actions {
			status := "pending"
			if a.Synced {
				status = "synced"
			}
			queued := time.UnixMilli(a.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", queued, a.Type, status)
		}
		return w.Flush()
	},
}
