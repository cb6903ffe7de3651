// Package main provides the entry point for axpsim.
// axpsim is a functional Alpha AXP instruction-set simulator.
//
// For the full CLI, use: go run ./cmd/axpsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("axpsim - Alpha AXP instruction-set simulator")
	fmt.Println("")
	fmt.Println("Usage: axpsim [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -e, --ev      Alpha generation to model (ev4..ev7)")
	fmt.Println("  -i, --image   Treat the program as a raw word image")
	fmt.Println("  -t, --timing  Timing configuration JSON file")
	fmt.Println("  --caches      Route data accesses through the TLB and cache model")
	fmt.Println("  -s, --stats   Print per-component statistics")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/axpsim' for the batch runner or")
	fmt.Println("'go run ./cmd/axpmon' for the interactive monitor.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/axpsim' instead.")
	}
}
