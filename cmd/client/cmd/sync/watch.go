// cmd/client/cmd/sync/watch.go
package sync

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/app/client/syncer"
)

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run in the foreground and sync automatically",
	Long: `Keep running, watch connectivity and replay queued actions as soon
as the connection returns. The story feed is polled periodically for new
stories. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		app.Start(cmd.Context())
		defer app.Shutdown()

		fmt.Println("Watching for connectivity and new stories. Ctrl+C to stop.")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case <-stop:
				fmt.Println("\nStopping...")
				return nil
			case event := <-app.Sync.Events():
				printEvent(event)
			}
		}
	},
}

func printEvent(event syncer.Event) {
	switch event.Type {
	case syncer.EventBackOnline:
		color.Green("✓ Back online: %s", event.Message)
	case syncer.EventWentOffline:
		color.Yellow("⚠ Connection lost, working from cache")
	case syncer.EventReplayFinished:
		color.Green("✓ %s", event.Message)
	case syncer.EventNewStories:
		fmt.Println("New stories available")
	case syncer.EventSessionExpired:
		color.Red("✗ Session expired: %s", event.Message)
		fmt.Println("Log in again with: storykeeper auth login")
	default:
		fmt.Printf("%s: %s\n", event.Type, event.Message)
	}
}
