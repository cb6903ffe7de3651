package emu

// AtomicOp selects the combining function of a fetch-and-op access.
type AtomicOp uint8

// Fetch-and-op combining functions.
const (
	AtomicAdd AtomicOp = iota
	AtomicAnd
	AtomicOr
	AtomicXor
)

// FenceKind selects the ordering strength of a memory barrier.
type FenceKind uint8

// Barrier strengths. FenceFull orders all prior accesses against all
// later ones, FenceStore orders stores only, FenceLoad orders loads only.
const (
	FenceFull FenceKind = iota
	FenceStore
	FenceLoad
)

// MemPort is the data-side memory interface the executors run against.
// Memory implements it with identity translation for functional runs;
// memsys.Integrator implements it with TLB translation and cache probes.
// Size is the access width in bytes (1, 2, 4, or 8); values travel
// little-endian, zero-extended to 64 bits.
//
// Implementations return *Trap errors for translation and protection
// failures. Loads and stores on the plain Memory backend never fail.
type MemPort interface {
	Load(cpu int, addr uint64, size uint8) (uint64, error)
	Store(cpu int, addr uint64, size uint8, value uint64) error

	// LoadLocked sets the issuing CPU's reservation, then reads.
	LoadLocked(cpu int, addr uint64, size uint8) (uint64, error)

	// StoreConditional writes only if the CPU's reservation still covers
	// addr. It reports whether the store was performed. The issuer's
	// reservation is cleared either way.
	StoreConditional(cpu int, addr uint64, size uint8, value uint64) (bool, error)

	// Exchange atomically swaps the addressed value, returning the old one.
	Exchange(cpu int, addr uint64, size uint8, value uint64) (uint64, error)

	// CompareExchange atomically replaces the addressed value with new if
	// it equals old. It returns the previous value and whether the swap
	// happened.
	CompareExchange(cpu int, addr uint64, size uint8, old, new uint64) (uint64, bool, error)

	// FetchOp atomically applies op to the addressed value and returns
	// the previous value.
	FetchOp(cpu int, addr uint64, size uint8, op AtomicOp, operand uint64) (uint64, error)

	// Prefetch hints that addr will be read soon. It never faults.
	// modifyIntent marks a prefetch with intent to write.
	Prefetch(cpu int, addr uint64, modifyIntent bool)

	// Evict hints that the cache block holding addr will not be reused.
	// It never faults.
	Evict(cpu int, addr uint64)

	// WriteHint64 hints that the aligned 64-byte block holding addr will
	// be entirely written. It never faults.
	WriteHint64(cpu int, addr uint64)

	// Fence establishes the given ordering edge for the issuing CPU.
	Fence(cpu int, kind FenceKind)
}

func applyAtomicOp(op AtomicOp, old, operand uint64) uint64 {
	switch op {
	case AtomicAdd:
		return old + operand
	case AtomicAnd:
		return old & operand
	case AtomicOr:
		return old | operand
	case AtomicXor:
		return old ^ operand
	}
	return old
}
