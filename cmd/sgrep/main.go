// Package main provides the entry point for the sgrep CLI.
package main

import (
	"os"

	"github.com/RandomsUsernames/sgrep/cmd/sgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
