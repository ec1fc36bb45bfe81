package main

import "RepoChat/client/repochat-cli/cmd"

func main() {
	cmd.Execute()
}
