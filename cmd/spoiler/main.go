// Package main is the entry point for the spoiler CLI.
package main

import (
	"os"

	"github.com/runger/spoiler/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
