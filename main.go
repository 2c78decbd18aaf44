package main

import (
	"os"

	"github.com/pathwars/pbpnudge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
