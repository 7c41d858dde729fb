// cmd/client/cmd/auth/register.go
package auth

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/domain/story"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new account",
	Long: `Create an account on the story service.

Registration needs a working connection; everything else in the client works
offline afterwards.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		fmt.Println("=== Registration ===")
		fmt.Println()

		fmt.Print("Name: ")
		var name string
		_, _ = fmt.Scanln(&name)

		fmt.Print("Email: ")
		var email string
		_, _ = fmt.Scanln(&email)

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Repeat password: ")
		passwordConfirm, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Println()

		if string(password) != string(passwordConfirm) {
			return fmt.Errorf("passwords do not match")
		}
		if len(password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.Sync.Register(ctx, story.RegisterRequest{
			Name:     name,
			Email:    email,
			Password: string(password),
		}); err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		fmt.Println()
		color.Green("✓ Account created")
		fmt.Println("Log in with: storykeeper auth login")
		return nil
	},
}
