// cmd/client/cmd/sync/sync.go
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/app/client/syncer"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued offline actions",
	Long: `Upload the actions queued while offline, in the order they were
performed. A failing action is kept for the next run; it never blocks the
rest of the queue.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		if !app.Sync.LoggedIn() {
			return fmt.Errorf("authentication required, run: storykeeper auth login")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		fmt.Println("=== Sync ===")
		result, err := app.Sync.Replay(ctx)
		switch {
		case errors.Is(err, syncer.ErrSessionExpired):
			color.Yellow("⚠ Session expired, log in again: storykeeper auth login")
			fmt.Println("Queued actions are kept and will upload after login")
			return nil
		case errors.Is(err, syncer.ErrReplayInProgress):
			fmt.Println("A replay is already running")
			return nil
		case err != nil:
			return fmt.Errorf("sync failed: %w", err)
		}

		if result.Attempted == 0 {
			fmt.Println("Nothing queued")
			return nil
		}

		color.Green("✓ Replayed %d of %d actions in %s",
			result.Succeeded, result.Attempted, result.Duration.Round(time.Millisecond))
		if result.Failed > 0 {
			color.Yellow("⚠ %d actions failed and stay queued", result.Failed)
		}
		if result.Skipped > 0 {
			fmt.Printf("Skipped %d already-synced actions\n", result.Skipped)
		}
		return nil
	},
}
