// Package main provides axpmon, an interactive monitor for poking at a
// simulated Alpha CPU: stepping, inspecting registers and memory,
// disassembling, and dumping component statistics.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/peterh/liner"
	getopt "github.com/pborman/getopt/v2"

	"github.com/sarchlab/axpsim/emu"
)

func main() {
	optFamily := getopt.StringLong("ev", 'e', "ev6", "Alpha generation to model")
	optImage := getopt.StringLong("image", 'i', "", "Raw word image to preload")
	optBase := getopt.Uint64Long("base", 'b', 0x1000, "Load address for the image")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	family, ok := parseFamily(*optFamily)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown EV family %q\n", *optFamily)
		os.Exit(1)
	}

	mon := newMonitor(family)
	if *optImage != "" {
		if err := mon.loadImage(*optImage, *optBase); err != nil {
			fmt.Fprintf(os.Stderr, "cannot load image: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("loaded %s at %#x\n", *optImage, *optBase)
	}

	console(mon)
}

// console runs the prompt loop until quit or an aborted prompt.
func console(mon *monitor) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		return completeCommand(prefix)
	})

	for {
		command, err := line.Prompt("axpmon> ")
		if err == nil {
			if strings.TrimSpace(command) != "" {
				line.AppendHistory(command)
			}
			quit, err := mon.execute(command)
			if err != nil {
				fmt.Println("error: " + err.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return
		}
		slog.Error("error reading line: " + err.Error())
		return
	}
}

func parseFamily(name string) (emu.EVFamily, bool) {
	switch strings.ToLower(name) {
	case "ev4":
		return emu.EV4, true
	case "ev5":
		return emu.EV5, true
	case "ev6":
		return emu.EV6, true
	case "ev67":
		return emu.EV67, true
	case "ev68":
		return emu.EV68, true
	case "ev7":
		return emu.EV7, true
	}
	return 0, false
}
