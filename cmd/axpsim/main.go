// Package main provides the axpsim batch runner: it loads an Alpha
// program, executes it on the functional engine, and reports statistics.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	getopt "github.com/pborman/getopt/v2"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/loader"
	"github.com/sarchlab/axpsim/memsys"
	"github.com/sarchlab/axpsim/timing/latency"
)

var families = map[string]emu.EVFamily{
	"ev4":  emu.EV4,
	"ev5":  emu.EV5,
	"ev6":  emu.EV6,
	"ev67": emu.EV67,
	"ev68": emu.EV68,
	"ev7":  emu.EV7,
}

func main() {
	os.Exit(run())
}

func run() int {
	optFamily := getopt.StringLong("ev", 'e', "ev6", "Alpha generation to model (ev4, ev5, ev6, ev67, ev68, ev7)")
	optCPUs := getopt.IntLong("cpus", 'c', 1, "Number of simulated CPUs")
	optImage := getopt.BoolLong("image", 'i', "Treat the program as a raw little-endian word image")
	optBase := getopt.Uint64Long("base", 'b', 0x1000, "Load address for raw images")
	optTiming := getopt.StringLong("timing", 't', "", "Timing configuration JSON file")
	optMemsys := getopt.StringLong("memsys", 'm', "", "Memory system configuration JSON file")
	optCaches := getopt.BoolLong("caches", 0, "Route data accesses through the TLB and cache model")
	optMax := getopt.Uint64Long("max", 'n', 0, "Instruction limit, 0 for none")
	optStats := getopt.BoolLong("stats", 's', "Print per-component statistics after the run")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug output")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.SetParameters("<program>")
	getopt.Parse()

	if *optHelp || len(getopt.Args()) != 1 {
		getopt.Usage()
		if *optHelp {
			return 0
		}
		return 2
	}

	level := new(slog.LevelVar)
	if *optDebug {
		level.Set(slog.LevelDebug)
	}
	logOut := os.Stderr
	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file: %v\n", err)
			return 1
		}
		defer file.Close()
		logOut = file
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	family, ok := families[strings.ToLower(*optFamily)]
	if !ok {
		logger.Error("unknown EV family", "family", *optFamily)
		return 1
	}

	path := getopt.Args()[0]
	var prog *loader.Program
	var err error
	if *optImage {
		prog, err = loader.LoadImage(path, *optBase)
	} else {
		prog, err = loader.Load(path)
	}
	if err != nil {
		logger.Error("cannot load program", "path", path, "error", err)
		return 1
	}
	logger.Debug("program loaded",
		"entry", fmt.Sprintf("%#x", prog.EntryPoint),
		"segments", len(prog.Segments))

	table := latency.NewTable()
	if *optTiming != "" {
		config, err := latency.LoadConfig(*optTiming)
		if err != nil {
			logger.Error("cannot load timing configuration", "error", err)
			return 1
		}
		table = latency.NewTableWithConfig(config)
	}

	memory := emu.NewMemory()
	handler := emu.NewOSFSyscallHandler(memory)
	opts := []emu.EngineOption{
		emu.WithMemory(memory),
		emu.WithCPUCount(*optCPUs),
		emu.WithEVFamily(family),
		emu.WithCycleModel(table),
		emu.WithSyscallHandler(handler),
		emu.WithMaxInstructions(*optMax),
	}

	var integrator *memsys.Integrator
	if *optCaches || *optMemsys != "" {
		config := memsys.DefaultConfig()
		if *optMemsys != "" {
			config, err = memsys.LoadConfig(*optMemsys)
			if err != nil {
				logger.Error("cannot load memory system configuration", "error", err)
				return 1
			}
		}
		config.MaxCPUs = max(config.MaxCPUs, *optCPUs)
		integrator = memsys.NewIntegrator(config, memory)
		opts = append(opts,
			emu.WithMemPort(integrator),
			emu.WithTLBInvalidator(integrator),
		)
	}

	engine := emu.NewEngine(opts...)
	prog.LoadInto(memory)
	cpu := engine.CPU(0)
	cpu.PC = prog.EntryPoint
	cpu.WriteReg(30, prog.InitialSP)

	result := engine.Run(0)

	if result.Exception != emu.ExcNone {
		logger.Error("run stopped on exception",
			"exception", result.Exception.String(),
			"pc", fmt.Sprintf("%#x", result.PC),
			"instructions", result.Instructions)
	}
	logger.Debug("run finished",
		"halted", result.Halted,
		"instructions", result.Instructions,
		"cycles", cpu.Cycles)

	if *optStats {
		printStats(engine, integrator)
	}

	if code, exited := handler.ExitCode(); exited {
		return int(code)
	}
	if result.Exception != emu.ExcNone {
		return 1
	}
	return int(cpu.ReadReg(0))
}

func printStats(engine *emu.Engine, integrator *memsys.Integrator) {
	fmt.Print(engine.StatsString())

	cpu := engine.CPU(0)
	cpi := 0.0
	if n := engine.InstructionCount(); n > 0 {
		cpi = float64(cpu.Cycles) / float64(n)
	}
	fmt.Printf("cycles: %d (cpi %.3f)\n", cpu.Cycles, cpi)

	predictor := engine.Predictor(0).Stats()
	if predictor.Predictions > 0 {
		fmt.Printf("branches: %d predicted, %d mispredicted (%.1f%% accuracy)\n",
			predictor.Predictions, predictor.Mispredictions, predictor.Accuracy())
	}

	reservations := engine.Reservations()
	if reservations.Successes()+reservations.Failures() > 0 {
		fmt.Printf("store-conditional: %d succeeded, %d failed, %d invalidated\n",
			reservations.Successes(), reservations.Failures(), reservations.Invalidations())
	}

	unaligned := engine.Unaligned()
	if unaligned.AlignedAccesses() > 0 {
		fmt.Printf("unaligned: %d accesses, %d line crossings, pattern %s\n",
			unaligned.AlignedAccesses(), unaligned.LineCrossings(), unaligned.Pattern())
	}

	pal := engine.Pal().Stats()
	palTotal := pal.TLBOps + pal.CacheOps + pal.ContextSwitches +
		pal.Syscalls + pal.Traps + pal.PrivilegeViolations + pal.Other
	if palTotal > 0 {
		fmt.Printf("palcode: %d tlb, %d cache, %d context, %d syscall, %d trap, %d privilege, %d other\n",
			pal.TLBOps, pal.CacheOps, pal.ContextSwitches,
			pal.Syscalls, pal.Traps, pal.PrivilegeViolations, pal.Other)
	}

	if integrator != nil {
		stats := integrator.Stats()
		fmt.Printf("caches: L1 %d, L2 %d, L3 %d, memory %d (efficiency %.3f)\n",
			stats.L1Hits, stats.L2Hits, stats.L3Hits,
			stats.MemoryAccesses, stats.Efficiency())
		translation := integrator.Translation()
		fmt.Printf("tlb: %d hits, %d misses, %d faults\n",
			translation.Hits, translation.Misses,
			translation.Faults+translation.ProtectionViolations+translation.InvalidAddresses)
	}
}
