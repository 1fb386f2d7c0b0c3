package main

import (
	"os"

	"github.com/launchkit-dev/launchkit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
