package main

import "storykeeper/cmd/client/cmd"

func main() {
	cmd.Execute()
}
