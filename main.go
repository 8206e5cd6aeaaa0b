// Package main provides the entry point for Citrine.
// Citrine is an ARM11 dynamic binary translator core for 3DS-class
// emulation.
//
// For the full CLI, use: go run ./cmd/citrine
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Citrine - ARM11 dynamic binary translator core")
	fmt.Println("")
	fmt.Println("Usage: citrine [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -n         Instruction budget to execute")
	fmt.Println("  -config    Path to timing configuration JSON file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/citrine' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/citrine' instead.")
	}
}
