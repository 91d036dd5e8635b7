package main

import (
	"os"

	"superid/cmd/superid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
