// Package main is the entry point for the peak CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/peak/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
