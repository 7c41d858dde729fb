// cmd/client/cmd/story/create.go
package story

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storykeeper/cmd/client/cmd/types"
	"storykeeper/internal/app/client"
	"storykeeper/internal/domain/story"
)

var (
	createDescription string
	createPhotoPath   string
	createLat         float64
	createLon         float64
)

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Share a new story",
	Long: `Upload a new story with a photo and optional coordinates.

Offline the story is stored locally with a temporary id and uploaded
automatically when the connection returns.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, _ := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		if createDescription == "" {
			return fmt.Errorf("--description is required")
		}
		if createPhotoPath == "" {
			return fmt.Errorf("--photo is required")
		}

		photo, err := os.ReadFile(createPhotoPath)
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}

		req := story.CreateRequest{
			Description: createDescription,
			Photo:       photo,
			PhotoName:   filepath.Base(createPhotoPath),
		}
		if cmd.Flags().Changed("lat") {
			req.Lat = &createLat
		}
		if cmd.Flags().Changed("lon") {
			req.Lon = &createLon
		}

		st, err := app.Sync.CreateStory(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("create story: %w", err)
		}

		if story.IsTempID(st.ID) {
			color.Yellow("⚠ Offline: story queued for upload")
			fmt.Printf("Temporary id: %s\n", st.ID)
			fmt.Println("It will be uploaded automatically, or run: storykeeper sync")
		} else {
			color.Green("✓ Story shared")
			if st.ID != "" {
				fmt.Printf("ID: %s\n", st.ID)
			}
		}
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVarP(&createDescription, "description", "d", "", "story text")
	CreateCmd.Flags().StringVarP(&createPhotoPath, "photo", "p", "", "path to the photo file")
	CreateCmd.Flags().Float64Var(&createLat, "lat", 0, "latitude")
	CreateCmd.Flags().Float64Var(&createLon, "lon", 0, "longitude")
}
