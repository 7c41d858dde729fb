// cmd/client/cmd/notify/subscribe.go
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
)

var endpoint string

var SubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe to push notifications",
	Long: `Register this client for push notifications.

A key pair is generated on first use and stored locally; the public half is
sent to the service together with the push endpoint.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		if endpoint == "" {
			return fmt.Errorf("--endpoint is required")
		}
		if !app.Sync.LoggedIn() {
			return fmt.Errorf("authentication required, run: storykeeper auth login")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.SubscribePush(ctx, endpoint); err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}

		color.Green("✓ Subscribed to push notifications")
		return nil
	},
}

func init() {
	SubscribeCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "push service endpoint URL")
}
