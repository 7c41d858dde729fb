// cmd/client/cmd/init.go
package cmd

import (
	"storykeeper/cmd/client/cmd/auth"
	"storykeeper/cmd/client/cmd/favorite"
	"storykeeper/cmd/client/cmd/notify"
	"storykeeper/cmd/client/cmd/story"
	"storykeeper/cmd/client/cmd/sync"
)

func init() {
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	rootCmd.AddCommand(story.StoryCmd)
	story.StoryCmd.AddCommand(story.ListCmd)
	story.StoryCmd.AddCommand(story.GetCmd)
	story.StoryCmd.AddCommand(story.CreateCmd)

	rootCmd.AddCommand(favorite.FavoriteCmd)
	favorite.FavoriteCmd.AddCommand(favorite.AddCmd)
	favorite.FavoriteCmd.AddCommand(favorite.RemoveCmd)
	favorite.FavoriteCmd.AddCommand(favorite.ListCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.StatusCmd)
	sync.SyncCmd.AddCommand(sync.WatchCmd)

	rootCmd.AddCommand(notify.NotifyCmd)
	notify.NotifyCmd.AddCommand(notify.SubscribeCmd)
	notify.NotifyCmd.AddCommand(notify.DecodeCmd)
}
