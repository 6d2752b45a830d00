// Package main is the entry point for the DFO data flow orchestrator.
package main

import (
	"fmt"
	"os"

	"daqflow.xyz/dfo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
