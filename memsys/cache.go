package memsys

import (
	"sync"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds the geometry of one cache level.
type CacheConfig struct {
	// Size is the total capacity in bytes.
	Size int

	// Associativity is the number of ways per set.
	Associativity int

	// BlockSize is the line size in bytes.
	BlockSize int
}

// DefaultL1DConfig returns the geometry of the first-level data cache:
// 64 KiB, 2-way, 64-byte lines.
func DefaultL1DConfig() CacheConfig {
	return CacheConfig{Size: 64 * 1024, Associativity: 2, BlockSize: 64}
}

// DefaultL2Config returns the geometry of the unified second-level
// cache: 2 MiB, 8-way, 64-byte lines.
func DefaultL2Config() CacheConfig {
	return CacheConfig{Size: 2 * 1024 * 1024, Associativity: 8, BlockSize: 64}
}

// DefaultL3Config returns the geometry of the third-level cache:
// 8 MiB, 16-way, 64-byte lines.
func DefaultL3Config() CacheConfig {
	return CacheConfig{Size: 8 * 1024 * 1024, Associativity: 16, BlockSize: 64}
}

// CacheStatistics tracks accesses on one cache level.
type CacheStatistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Fills      uint64
	Evictions  uint64
	Writebacks uint64
}

// AccessResult reports how one cache access resolved.
type AccessResult struct {
	// Hit is true when the line was already resident.
	Hit bool

	// Evicted is true when installing the line displaced another.
	Evicted bool

	// EvictedAddr is the block address of the displaced line.
	EvictedAddr uint64

	// Writeback is true when the displaced line was dirty.
	Writeback bool
}

// Cache tracks line residency for one level of the hierarchy. It holds
// tags and state only; data lives in the shared memory, which stays the
// single coherent view.
type Cache struct {
	config CacheConfig

	mu        sync.Mutex
	directory *akitacache.DirectoryImpl
	stats     CacheStatistics
}

// NewCache creates a cache level with the given geometry.
func NewCache(config CacheConfig) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache geometry.
func (c *Cache) Config() CacheConfig {
	return c.config
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return addr / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)
}

// Read looks up the line holding addr, installing it on a miss.
func (c *Cache) Read(addr uint64) AccessResult {
	return c.access(addr, false, false)
}

// Write looks up the line holding addr, installing it on a miss. The
// line is marked dirty when the caller runs a writeback policy.
func (c *Cache) Write(addr uint64, dirty bool) AccessResult {
	return c.access(addr, true, dirty)
}

func (c *Cache) access(addr uint64, write, dirty bool) AccessResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if write {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if dirty {
			block.IsDirty = true
		}
		return AccessResult{Hit: true}
	}

	c.stats.Misses++
	return c.install(blockAddr, dirty)
}

// Fill installs the line holding addr without counting a demand access.
// Prefetches and refills from lower levels come through here.
func (c *Cache) Fill(addr uint64) AccessResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.directory.Visit(block)
		return AccessResult{Hit: true}
	}

	c.stats.Fills++
	return c.install(blockAddr, false)
}

func (c *Cache) install(blockAddr uint64, dirty bool) AccessResult {
	result := AccessResult{}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}
	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		if victim.IsDirty {
			c.stats.Writebacks++
			result.Writeback = true
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = dirty
	c.directory.Visit(victim)

	return result
}

// Contains reports whether the line holding addr is resident. It does
// not disturb replacement state or statistics.
func (c *Cache) Contains(addr uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	block := c.directory.Lookup(0, c.blockAddr(addr))
	return block != nil && block.IsValid
}

// Invalidate drops the line holding addr if it is resident.
func (c *Cache) Invalidate(addr uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush drops every resident line, counting writebacks for dirty ones.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache) Stats() CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStats zeroes the statistics, leaving contents in place.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = CacheStatistics{}
}

// Reset drops all lines and zeroes the statistics.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directory.Reset()
	c.stats = CacheStatistics{}
}
