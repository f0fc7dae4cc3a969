// Package main provides the CLI entry point for reportal.
package main

import (
	"os"

	"github.com/reportal-io/reportal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
