// Package main provides the entry point for the autoloop CLI.
package main

import (
	"os"

	"autoloop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
