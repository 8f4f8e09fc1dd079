package main

import (
	"os"

	"github.com/rickgao/remindchat/cmd/remindchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
