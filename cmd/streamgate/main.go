// Package main is the entry point for the streamgate application.
package main

import (
	"os"

	"github.com/streamgate/streamgate/cmd/streamgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
