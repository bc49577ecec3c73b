package main

import (
	"os"

	"github.com/crmdash/crmdash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
