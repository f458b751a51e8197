// Package main is the entry point for the streamcore demo binary.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/streamcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
