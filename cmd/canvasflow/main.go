// Package main is the entry point for the canvasflow CLI.
//
// Usage:
//
//	canvasflow [flags] <command> [args]
//
// Commands:
//
//	run      - Stream a generation onto a canvas
//	parse    - Replay a saved markup file offline
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/canvasflow/canvasflow/cmd/canvasflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
