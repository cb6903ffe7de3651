// Package memsys couples address translation to the cache hierarchy: a
// page-granular mapping cache, per-CPU cache stacks probed in order
// L1 data, L2, L3, and an optional coherency tracker.
package memsys

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds cache-integrator parameters.
type Config struct {
	// CacheLineSize in bytes. Default: 64.
	CacheLineSize int `json:"cache_line_size"`

	// PageSize in bytes, 4096 or 8192. Default: 8192.
	PageSize int `json:"page_size"`

	// EfficiencyTarget is the cache hit fraction the hierarchy is
	// expected to reach, 0.0 to 1.0. MeetsTarget reports against it.
	EfficiencyTarget float64 `json:"efficiency_target"`

	// PrefetchDepth is the number of lines fetched ahead when a demand
	// access reaches memory. Default: 2.
	PrefetchDepth int `json:"prefetch_depth"`

	// PrefetchDistance is how far ahead of the demand address, in
	// bytes, prefetching starts. Default: 0 (the next line).
	PrefetchDistance int `json:"prefetch_distance"`

	// EnableCoherency turns on cross-CPU line state tracking.
	EnableCoherency bool `json:"enable_coherency"`

	// EnablePrefetch turns on miss-triggered prefetching.
	EnablePrefetch bool `json:"enable_prefetch"`

	// EnableWriteback marks written lines dirty and counts writebacks
	// on eviction. Disabled, stores write through.
	EnableWriteback bool `json:"enable_writeback"`

	// MaxCPUs bounds the per-CPU controller map. Default: 8.
	MaxCPUs int `json:"max_cpus"`
}

// DefaultConfig returns a Config with stock values.
func DefaultConfig() *Config {
	return &Config{
		CacheLineSize:    64,
		PageSize:         8192,
		EfficiencyTarget: 0.9,
		PrefetchDepth:    2,
		PrefetchDistance: 0,
		EnableCoherency:  true,
		EnablePrefetch:   true,
		EnableWriteback:  true,
		MaxCPUs:          8,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memsys config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse memsys config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize memsys config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write memsys config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.CacheLineSize <= 0 {
		return fmt.Errorf("cache_line_size must be > 0")
	}
	if c.PageSize != 4096 && c.PageSize != 8192 {
		return fmt.Errorf("page_size must be 4096 or 8192")
	}
	if c.EfficiencyTarget < 0 || c.EfficiencyTarget > 1 {
		return fmt.Errorf("efficiency_target must be between 0.0 and 1.0")
	}
	if c.PrefetchDepth < 0 {
		return fmt.Errorf("prefetch_depth must not be negative")
	}
	if c.PrefetchDistance < 0 {
		return fmt.Errorf("prefetch_distance must not be negative")
	}
	if c.MaxCPUs <= 0 {
		return fmt.Errorf("max_cpus must be > 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
