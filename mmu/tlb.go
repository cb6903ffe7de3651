package mmu

import (
	"fmt"
	"sync"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// Flag is the protection and status bit set carried by each TLB entry.
// The accessed and dirty bits are software-maintained: lookups never
// touch them.
type Flag uint8

// Entry flag bits.
const (
	FlagValid    Flag = 1 << 0
	FlagWrite    Flag = 1 << 1
	FlagExec     Flag = 1 << 2
	FlagKernel   Flag = 1 << 3
	FlagUser     Flag = 1 << 4
	FlagGlobal   Flag = 1 << 5
	FlagAccessed Flag = 1 << 6
	FlagDirty    Flag = 1 << 7
)

// Entry is one cached page mapping.
type Entry struct {
	// VirtualTag holds the VPN bits above the set index.
	VirtualTag uint64
	// PhysicalPage is the page-aligned physical address.
	PhysicalPage uint64
	// ASN is the address space the mapping belongs to. Ignored on
	// lookup when FlagGlobal is set.
	ASN   uint64
	Flags Flag
}

// Indexing selects how virtual page numbers map to TLB sets.
type Indexing uint8

// Indexing schemes.
const (
	FullyAssociative Indexing = iota
	DirectMapped
	SetAssociative
)

var indexingNames = map[Indexing]string{
	FullyAssociative: "fully-associative",
	DirectMapped:     "direct-mapped",
	SetAssociative:   "set-associative",
}

func (i Indexing) String() string {
	if s, ok := indexingNames[i]; ok {
		return s
	}
	return "indexing?"
}

// TLBConfig holds TLB geometry parameters.
type TLBConfig struct {
	// Entries is the total mapping capacity.
	Entries int
	// Ways is the associativity. Only consulted for SetAssociative.
	Ways int
	// Indexing picks the placement scheme.
	Indexing Indexing
}

// DefaultTLBConfig returns the geometry of the EV6 data translation
// buffer: 128 entries, fully associative.
func DefaultTLBConfig() TLBConfig {
	return TLBConfig{Entries: 128, Indexing: FullyAssociative}
}

// Validate checks the geometry for consistency.
func (c TLBConfig) Validate() error {
	if c.Entries <= 0 {
		return fmt.Errorf("tlb: entry count %d must be positive", c.Entries)
	}
	if c.Indexing == SetAssociative {
		if c.Ways <= 0 {
			return fmt.Errorf("tlb: way count %d must be positive", c.Ways)
		}
		if c.Entries%c.Ways != 0 {
			return fmt.Errorf("tlb: %d entries do not divide into %d ways",
				c.Entries, c.Ways)
		}
	}
	return nil
}

func (c TLBConfig) geometry() (sets, ways int) {
	switch c.Indexing {
	case DirectMapped:
		return c.Entries, 1
	case SetAssociative:
		return c.Entries / c.Ways, c.Ways
	default:
		return 1, c.Entries
	}
}

// TLBStats holds TLB activity counters.
type TLBStats struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Insertions    uint64
	Evictions     uint64
	Invalidations uint64
}

// TLB caches page mappings. Placement, replacement, and tag state live in
// an Akita cache directory; the mapping payload sits in a parallel entry
// array indexed by (setID * ways + wayID). Safe for concurrent use.
type TLB struct {
	config TLBConfig
	sets   int
	ways   int

	mu        sync.Mutex
	directory *akitacache.DirectoryImpl
	entries   []Entry
	stats     TLBStats
}

// NewTLB creates a TLB with the given geometry.
func NewTLB(config TLBConfig) *TLB {
	sets, ways := config.geometry()
	return &TLB{
		config: config,
		sets:   sets,
		ways:   ways,
		directory: akitacache.NewDirectory(
			sets,
			ways,
			PageBytes,
			akitacache.NewLRUVictimFinder(),
		),
		entries: make([]Entry, sets*ways),
	}
}

// Config returns the TLB geometry.
func (t *TLB) Config() TLBConfig {
	return t.config
}

// Stats returns a snapshot of the activity counters.
func (t *TLB) Stats() TLBStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// blockIndex computes the entry array index for a directory block.
func (t *TLB) blockIndex(block *akitacache.Block) int {
	return block.SetID*t.ways + block.WayID
}

// Lookup probes the TLB for the page containing va under the given
// address space. Global mappings hit under any ASN. On a miss the result
// carries the set index and tag the page would occupy.
func (t *TLB) Lookup(asn, va uint64) LookupResult {
	vaPage := va &^ uint64(PageMask)
	vpn := va >> PageShift

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Lookups++

	block := t.directory.Lookup(vm.PID(asn), vaPage)
	if block == nil || !block.IsValid {
		block = t.globalMatch(vaPage)
	}
	if block != nil && block.IsValid {
		t.directory.Visit(block)
		t.stats.Hits++
		idx := t.blockIndex(block)
		return LookupResult{
			Entry:      t.entries[idx],
			Index:      idx,
			VirtualTag: t.entries[idx].VirtualTag,
			Found:      true,
		}
	}

	t.stats.Misses++
	return LookupResult{
		Index:      int(vpn % uint64(t.sets)),
		VirtualTag: vpn / uint64(t.sets),
	}
}

// globalMatch scans the set for a mapping of vaPage installed with the
// global flag, which matches regardless of ASN.
func (t *TLB) globalMatch(vaPage uint64) *akitacache.Block {
	set := t.setFor(vaPage)
	for _, block := range set.Blocks {
		if !block.IsValid || block.Tag != vaPage {
			continue
		}
		if t.entries[t.blockIndex(block)].Flags&FlagGlobal != 0 {
			return block
		}
	}
	return nil
}

func (t *TLB) setFor(vaPage uint64) akitacache.Set {
	setID := int(vaPage / PageBytes % uint64(t.sets))
	return t.directory.GetSets()[setID]
}

// Insert installs or refreshes the mapping for the page containing va.
// A re-insert of a resident page updates the payload in place; otherwise
// the victim finder picks a slot, evicting its current holder if valid.
func (t *TLB) Insert(asn, va, pa uint64, flags Flag) {
	vaPage := va &^ uint64(PageMask)
	entry := Entry{
		VirtualTag:   (va >> PageShift) / uint64(t.sets),
		PhysicalPage: pa &^ uint64(PageMask),
		ASN:          asn,
		Flags:        flags,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if block := t.directory.Lookup(vm.PID(asn), vaPage); block != nil && block.IsValid {
		t.entries[t.blockIndex(block)] = entry
		t.directory.Visit(block)
		t.stats.Insertions++
		return
	}

	victim := t.directory.FindVictim(vaPage)
	if victim == nil {
		return
	}
	if victim.IsValid {
		t.stats.Evictions++
	}
	victim.PID = vm.PID(asn)
	victim.Tag = vaPage
	victim.IsValid = true
	victim.IsDirty = false
	t.entries[t.blockIndex(victim)] = entry
	t.directory.Visit(victim)
	t.stats.Insertions++
}

// InvalidatePage drops the mapping for the page containing va. Mappings
// installed under the given ASN match, as do global mappings under any.
func (t *TLB) InvalidatePage(asn, va uint64) {
	vaPage := va &^ uint64(PageMask)

	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.setFor(vaPage)
	for _, block := range set.Blocks {
		if !block.IsValid || block.Tag != vaPage {
			continue
		}
		global := t.entries[t.blockIndex(block)].Flags&FlagGlobal != 0
		if uint64(block.PID) == asn || global {
			t.invalidate(block)
		}
	}
}

// InvalidateASN drops every mapping installed under the given address
// space. Global mappings survive.
func (t *TLB) InvalidateASN(asn uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, set := range t.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid || uint64(block.PID) != asn {
				continue
			}
			if t.entries[t.blockIndex(block)].Flags&FlagGlobal != 0 {
				continue
			}
			t.invalidate(block)
		}
	}
}

// InvalidateAll drops every mapping, global ones included.
func (t *TLB) InvalidateAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, set := range t.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				t.invalidate(block)
			}
		}
	}
}

func (t *TLB) invalidate(block *akitacache.Block) {
	block.IsValid = false
	block.IsDirty = false
	t.entries[t.blockIndex(block)] = Entry{}
	t.stats.Invalidations++
}

// Dump returns the valid entries in set order, for inspection.
func (t *TLB) Dump() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Entry
	for _, set := range t.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				out = append(out, t.entries[t.blockIndex(block)])
			}
		}
	}
	return out
}

// Reset drops all mappings and zeroes the counters.
func (t *TLB) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.directory.Reset()
	for i := range t.entries {
		t.entries[i] = Entry{}
	}
	t.stats = TLBStats{}
}
