// Package main is the entry point for the personactl operator CLI.
//
// Usage:
//
//	personactl [flags] <command> [args]
//
// Commands:
//
//	pose  - trigger a named pose on the hub
//	feed  - replay recorded telemetry into the hub
//	tail  - stream live hub events to stdout
package main

import (
	"fmt"
	"os"

	"github.com/tjamescouch/personas/cmd/personactl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
