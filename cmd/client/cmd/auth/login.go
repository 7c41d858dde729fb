// cmd/client/cmd/auth/login.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/app/client/syncer"
	"storykeeper/internal/domain/story"
)

var replayAfterLogin bool

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the story service",
	Long: `Authenticate against the story service.

The session token is stored locally, so later commands work without logging
in again. Stories queued while offline are replayed right after login.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		fmt.Println("=== Login ===")
		fmt.Println()

		fmt.Print("Email: ")
		var email string
		_, _ = fmt.Scanln(&email)

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Println()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		fmt.Println("Authenticating...")
		if err := app.Sync.Login(ctx, story.LoginRequest{
			Email:    email,
			Password: string(password),
		}); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}

		fmt.Println()
		color.Green("✓ Logged in as %s", app.Sync.UserName(ctx))

		if replayAfterLogin {
			fmt.Println("Replaying queued actions...")
			result, err := app.Sync.Replay(ctx)
			switch {
			case errors.Is(err, syncer.ErrSessionExpired):
				color.Yellow("⚠ Session expired during replay, log in again")
			case err != nil:
				color.Yellow("⚠ Replay failed: %v", err)
				fmt.Println("Queued actions are kept and will be retried later")
			case result != nil && result.Attempted > 0:
				color.Green("✓ Replayed %d of %d queued actions", result.Succeeded, result.Attempted)
			default:
				fmt.Println("Nothing queued")
			}
		}

		return nil
	},
}

func init() {
	LoginCmd.Flags().BoolVarP(&replayAfterLogin, "replay", "r", true, "replay queued offline actions after login")
}
