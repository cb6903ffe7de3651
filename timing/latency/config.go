package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for different instruction types.
// Values approximate EV6-generation issue-to-retire counts.
type TimingConfig struct {
	// IntegerLatency is the execution latency for integer arithmetic,
	// logical, shift, and conditional-move operations. Default: 1 cycle.
	IntegerLatency uint64 `json:"integer_latency"`

	// MultiplyLatency is the latency for 32-bit integer multiplies.
	// Default: 3 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// Multiply64Latency is the latency for 64-bit multiplies and the
	// unsigned high-half multiply. Default: 7 cycles.
	Multiply64Latency uint64 `json:"multiply64_latency"`

	// ByteLatency is the latency for byte extract/insert/mask, media,
	// and bit-count operations. Default: 2 cycles.
	ByteLatency uint64 `json:"byte_latency"`

	// LoadLatency is the latency for load operations assuming a
	// first-level cache hit. Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency for store operations (fire-and-forget
	// into the write buffer). Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// FPLatency is the latency for floating-point add, multiply,
	// convert, and compare. Default: 4 cycles.
	FPLatency uint64 `json:"fp_latency"`

	// FPDivSingleLatency is the latency for single-precision divides.
	// Default: 12 cycles.
	FPDivSingleLatency uint64 `json:"fp_div_single_latency"`

	// FPDivDoubleLatency is the latency for double-precision divides.
	// Default: 15 cycles.
	FPDivDoubleLatency uint64 `json:"fp_div_double_latency"`

	// FPSqrtSingleLatency is the latency for single-precision square
	// roots. Default: 18 cycles.
	FPSqrtSingleLatency uint64 `json:"fp_sqrt_single_latency"`

	// FPSqrtDoubleLatency is the latency for double-precision square
	// roots. Default: 33 cycles.
	FPSqrtDoubleLatency uint64 `json:"fp_sqrt_double_latency"`

	// BranchLatency is the base execution latency for resolved control
	// flow. This does not include misprediction penalty. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// BranchMispredictPenalty is the additional cycles lost on a branch
	// misprediction. Default: 7 cycles (front-end refill).
	BranchMispredictPenalty uint64 `json:"branch_mispredict_penalty"`

	// BarrierLatency is the latency for memory barriers and the rest of
	// the function-selected memory group. Default: 5 cycles.
	BarrierLatency uint64 `json:"barrier_latency"`

	// AtomicLatency is the latency for atomic read-modify-write memory
	// operations. Default: 8 cycles.
	AtomicLatency uint64 `json:"atomic_latency"`

	// PalLatency is the dispatch latency for CALL_PAL. Default: 30 cycles.
	PalLatency uint64 `json:"pal_latency"`

	// L1HitLatency is the first-level data cache hit latency.
	// Default: 3 cycles.
	L1HitLatency uint64 `json:"l1_hit_latency"`

	// L2HitLatency is the second-level cache hit latency.
	// Default: 13 cycles.
	L2HitLatency uint64 `json:"l2_hit_latency"`

	// L3HitLatency is the third-level cache hit latency.
	// Default: 25 cycles.
	L3HitLatency uint64 `json:"l3_hit_latency"`

	// MemoryLatency is the main memory access latency.
	// Default: 130 cycles.
	MemoryLatency uint64 `json:"memory_latency"`
}

// DefaultTimingConfig returns a TimingConfig with EV6-based defaults.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		IntegerLatency:          1,
		MultiplyLatency:         3,
		Multiply64Latency:       7,
		ByteLatency:             2,
		LoadLatency:             3,
		StoreLatency:            1,
		FPLatency:               4,
		FPDivSingleLatency:      12,
		FPDivDoubleLatency:      15,
		FPSqrtSingleLatency:     18,
		FPSqrtDoubleLatency:     33,
		BranchLatency:           1,
		BranchMispredictPenalty: 7,
		BarrierLatency:          5,
		AtomicLatency:           8,
		PalLatency:              30,
		L1HitLatency:            3,
		L2HitLatency:            13,
		L3HitLatency:            25,
		MemoryLatency:           130,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0). The
// misprediction penalty may be zero.
func (c *TimingConfig) Validate() error {
	if c.IntegerLatency == 0 {
		return fmt.Errorf("integer_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.Multiply64Latency == 0 {
		return fmt.Errorf("multiply64_latency must be > 0")
	}
	if c.ByteLatency == 0 {
		return fmt.Errorf("byte_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.FPLatency == 0 {
		return fmt.Errorf("fp_latency must be > 0")
	}
	if c.FPDivSingleLatency == 0 || c.FPDivDoubleLatency == 0 {
		return fmt.Errorf("fp divide latencies must be > 0")
	}
	if c.FPDivSingleLatency > c.FPDivDoubleLatency {
		return fmt.Errorf("fp_div_single_latency must be <= fp_div_double_latency")
	}
	if c.FPSqrtSingleLatency == 0 || c.FPSqrtDoubleLatency == 0 {
		return fmt.Errorf("fp square root latencies must be > 0")
	}
	if c.FPSqrtSingleLatency > c.FPSqrtDoubleLatency {
		return fmt.Errorf("fp_sqrt_single_latency must be <= fp_sqrt_double_latency")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.BarrierLatency == 0 {
		return fmt.Errorf("barrier_latency must be > 0")
	}
	if c.AtomicLatency == 0 {
		return fmt.Errorf("atomic_latency must be > 0")
	}
	if c.PalLatency == 0 {
		return fmt.Errorf("pal_latency must be > 0")
	}
	if c.L1HitLatency == 0 || c.L2HitLatency == 0 || c.L3HitLatency == 0 {
		return fmt.Errorf("cache hit latencies must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
