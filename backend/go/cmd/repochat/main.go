package main

import "RepoChat/backend/go/cmd/repochat/cli"

func main() {
	cli.Execute()
}
