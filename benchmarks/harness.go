// Package benchmarks provides hand-assembled Alpha kernels and the
// harness that runs them against the functional engine for latency
// calibration and acceptance testing.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/memsys"
	"github.com/sarchlab/axpsim/timing/latency"
)

// ProgramBase is the address kernels are loaded and entered at.
const ProgramBase = 0x1000

// defaultStepLimit bounds a kernel run so a broken loop cannot hang the
// harness.
const defaultStepLimit = 1 << 20

// Benchmark defines a single benchmark kernel.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark measures.
	Description string

	// Setup prepares engine state (registers, memory) before the run.
	Setup func(engine *emu.Engine)

	// Program is the Alpha machine code to execute, one word per
	// instruction. Every kernel ends with CALL_PAL HALT.
	Program []uint32

	// ExpectedR0 is the value R0 must hold at the halt.
	ExpectedR0 uint64

	// StepLimit caps the run. Zero selects the harness default.
	StepLimit uint64
}

// Result holds the outcome of a single benchmark run.
type Result struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Description explains what the benchmark measures.
	Description string `json:"description"`

	// Instructions is the number of instructions retired.
	Instructions uint64 `json:"instructions"`

	// Cycles is the accumulated cycle count from the latency table.
	Cycles uint64 `json:"cycles"`

	// CPI is cycles per instruction.
	CPI float64 `json:"cpi"`

	// Halted is true when the kernel reached its CALL_PAL HALT.
	Halted bool `json:"halted"`

	// Exception names the first exception when the run faulted.
	Exception string `json:"exception,omitempty"`

	// R0 is the result register at stop time.
	R0 uint64 `json:"r0"`

	// Passed is true when R0 matched the expectation.
	Passed bool `json:"passed"`

	// Branch predictor statistics.
	BranchPredictions    uint64  `json:"branch_predictions,omitempty"`
	BranchMispredictions uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracy       float64 `json:"branch_accuracy_percent,omitempty"`

	// Store-conditional outcome tallies.
	SCSuccesses uint64 `json:"sc_successes,omitempty"`
	SCFailures  uint64 `json:"sc_failures,omitempty"`

	// Cache-level hit counts, present when the run used the memory
	// system integrator.
	L1Hits         uint64 `json:"l1_hits,omitempty"`
	L2Hits         uint64 `json:"l2_hits,omitempty"`
	L3Hits         uint64 `json:"l3_hits,omitempty"`
	MemoryAccesses uint64 `json:"memory_accesses,omitempty"`
	MapHits        uint64 `json:"map_hits,omitempty"`
	MapMisses      uint64 `json:"map_misses,omitempty"`

	// WallTime is the host time the simulation took.
	WallTime time.Duration `json:"wall_time_ns"`
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Family selects the modeled Alpha generation.
	Family emu.EVFamily

	// Timing overrides the default latency configuration.
	Timing *latency.TimingConfig

	// EnableCaches routes data accesses through the TLB and cache
	// integrator instead of straight to memory.
	EnableCaches bool

	// Memsys configures the integrator when EnableCaches is set.
	Memsys *memsys.Config

	// Output is where results are written. Defaults to os.Stdout.
	Output io.Writer

	// Verbose enables per-kernel progress output.
	Verbose bool
}

// DefaultHarnessConfig returns the standard configuration: an EV6 with
// default latencies and no cache model.
func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		Family: emu.EV6,
		Output: os.Stdout,
	}
}

// Harness runs benchmark kernels and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if !config.Family.Valid() {
		config.Family = emu.EV6
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every registered benchmark and returns the results.
func (h *Harness) RunAll() []Result {
	results := make([]Result, 0, len(h.benchmarks))
	for _, bench := range h.benchmarks {
		if h.config.Verbose {
			fmt.Fprintf(h.config.Output, "running %s...\n", bench.Name)
		}
		results = append(results, h.Run(bench))
	}
	return results
}

// Run executes a single benchmark on a fresh engine.
func (h *Harness) Run(bench Benchmark) Result {
	limit := bench.StepLimit
	if limit == 0 {
		limit = defaultStepLimit
	}

	table := latency.NewTable()
	if h.config.Timing != nil {
		table = latency.NewTableWithConfig(h.config.Timing)
	}

	memory := emu.NewMemory()
	opts := []emu.EngineOption{
		emu.WithMemory(memory),
		emu.WithEVFamily(h.config.Family),
		emu.WithCycleModel(table),
		emu.WithMaxInstructions(limit),
	}

	var integrator *memsys.Integrator
	if h.config.EnableCaches {
		config := h.config.Memsys
		if config == nil {
			config = memsys.DefaultConfig()
		}
		integrator = memsys.NewIntegrator(config, memory)
		opts = append(opts,
			emu.WithMemPort(integrator),
			emu.WithTLBInvalidator(integrator),
		)
	}

	engine := emu.NewEngine(opts...)
	if bench.Setup != nil {
		bench.Setup(engine)
	}
	engine.LoadProgram(0, ProgramBase, bench.Program)

	start := time.Now()
	run := engine.Run(0)
	wall := time.Since(start)

	cpu := engine.CPU(0)
	result := Result{
		Name:         bench.Name,
		Description:  bench.Description,
		Instructions: run.Instructions,
		Cycles:       cpu.Cycles,
		Halted:       run.Halted,
		R0:           cpu.ReadReg(0),
		WallTime:     wall,
	}
	if run.Instructions > 0 {
		result.CPI = float64(cpu.Cycles) / float64(run.Instructions)
	}
	if run.Exception != emu.ExcNone {
		result.Exception = run.Exception.String()
	}
	result.Passed = run.Halted && result.R0 == bench.ExpectedR0

	predictor := engine.Predictor(0).Stats()
	result.BranchPredictions = predictor.Predictions
	result.BranchMispredictions = predictor.Mispredictions
	result.BranchAccuracy = predictor.Accuracy()

	reservations := engine.Reservations()
	result.SCSuccesses = reservations.Successes()
	result.SCFailures = reservations.Failures()

	if integrator != nil {
		stats := integrator.Stats()
		result.L1Hits = stats.L1Hits
		result.L2Hits = stats.L2Hits
		result.L3Hits = stats.L3Hits
		result.MemoryAccesses = stats.MemoryAccesses
		result.MapHits = stats.MapHits
		result.MapMisses = stats.MapMisses
	}

	return result
}

// PrintResults writes results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	w := h.config.Output
	fmt.Fprintf(w, "=== axpsim %s benchmark results ===\n\n", h.config.Family)

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s: %s\n", r.Name, status)
		fmt.Fprintf(w, "  %s\n", r.Description)
		fmt.Fprintf(w, "  instructions: %-10d cycles: %-10d cpi: %.3f\n",
			r.Instructions, r.Cycles, r.CPI)
		fmt.Fprintf(w, "  r0: %d", r.R0)
		if r.Exception != "" {
			fmt.Fprintf(w, "  exception: %s", r.Exception)
		}
		fmt.Fprintln(w)
		if r.BranchPredictions > 0 {
			fmt.Fprintf(w, "  branches: %d predicted, %d mispredicted (%.1f%% accuracy)\n",
				r.BranchPredictions, r.BranchMispredictions, r.BranchAccuracy)
		}
		if r.SCSuccesses+r.SCFailures > 0 {
			fmt.Fprintf(w, "  store-conditional: %d succeeded, %d failed\n",
				r.SCSuccesses, r.SCFailures)
		}
		if r.L1Hits+r.L2Hits+r.L3Hits+r.MemoryAccesses > 0 {
			fmt.Fprintf(w, "  caches: L1 %d, L2 %d, L3 %d, memory %d\n",
				r.L1Hits, r.L2Hits, r.L3Hits, r.MemoryAccesses)
		}
		fmt.Fprintf(w, "  wall time: %v\n\n", r.WallTime)
	}
}

// PrintCSV writes results in CSV form for comparison across runs.
func (h *Harness) PrintCSV(results []Result) {
	fmt.Fprintln(h.config.Output,
		"name,instructions,cycles,cpi,r0,passed,branch_predictions,branch_mispredictions,l1_hits,l2_hits,l3_hits,memory_accesses")
	for _, r := range results {
		fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%t,%d,%d,%d,%d,%d,%d\n",
			r.Name, r.Instructions, r.Cycles, r.CPI, r.R0, r.Passed,
			r.BranchPredictions, r.BranchMispredictions,
			r.L1Hits, r.L2Hits, r.L3Hits, r.MemoryAccesses)
	}
}

// Report is the JSON output shape for a full benchmark run.
type Report struct {
	// Metadata describes the run.
	Metadata ReportMetadata `json:"metadata"`

	// Results holds the individual benchmark results.
	Results []Result `json:"results"`

	// Summary aggregates across all benchmarks.
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata describes a benchmark run.
type ReportMetadata struct {
	// Timestamp is when the run started, RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	// Family is the modeled Alpha generation.
	Family string `json:"family"`

	// CachesEnabled records whether the memory system was modeled.
	CachesEnabled bool `json:"caches_enabled"`
}

// ReportSummary aggregates statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run.
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks whose R0 matched.
	Passed int `json:"passed"`

	// TotalInstructions is the sum of retired instructions.
	TotalInstructions uint64 `json:"total_instructions"`

	// TotalCycles is the sum of simulated cycles.
	TotalCycles uint64 `json:"total_cycles"`

	// AverageCPI is total cycles over total instructions.
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the host time for the whole run.
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON writes results as an indented JSON report.
func (h *Harness) PrintJSON(results []Result) error {
	var summary ReportSummary
	summary.TotalBenchmarks = len(results)
	for _, r := range results {
		if r.Passed {
			summary.Passed++
		}
		summary.TotalInstructions += r.Instructions
		summary.TotalCycles += r.Cycles
		summary.TotalWallTime += r.WallTime
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Family:        h.config.Family.String(),
			CachesEnabled: h.config.EnableCaches,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
