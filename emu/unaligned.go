package emu

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// AccessPattern is the classifier's reading of the recent address
// stream.
type AccessPattern uint8

// Access patterns, recalculated from the last two addresses.
const (
	PatternUnknown AccessPattern = iota
	PatternSequential
	PatternStrided
	PatternPacked
	PatternStreaming
	PatternRandom
)

var patternNames = map[AccessPattern]string{
	PatternUnknown:    "unknown",
	PatternSequential: "sequential",
	PatternStrided:    "strided",
	PatternPacked:     "packed",
	PatternStreaming:  "streaming",
	PatternRandom:     "random",
}

func (p AccessPattern) String() string {
	if s, ok := patternNames[p]; ok {
		return s
	}
	return "unknown"
}

// unalignedLineSize is the cache-line granularity used for crossing
// detection.
const unalignedLineSize = 64

// UnalignedUnit executes LDQ_U and STQ_U and provides the split-access
// fixup path for misaligned ordinary loads and stores. LDQ_U and STQ_U
// clear the low three address bits and perform a single aligned access;
// the fixup path performs two aligned accesses and combines bytes by
// position. The unit also detects cache-line crossings and classifies
// the address stream.
type UnalignedUnit struct {
	port MemPort

	accesses  atomic.Uint64 // aligned accesses issued
	crossings atomic.Uint64 // spans that crossed a cache line
	fixups    atomic.Uint64 // misaligned accesses emulated

	pattern atomic.Uint32

	mu       sync.Mutex
	havePrev bool
	prevAddr uint64
}

// NewUnalignedUnit creates an unaligned-access executor running against
// the given port.
func NewUnalignedUnit(port MemPort) *UnalignedUnit {
	return &UnalignedUnit{port: port}
}

// AlignedAccesses returns the number of aligned accesses issued,
// counting both halves of a split.
func (u *UnalignedUnit) AlignedAccesses() uint64 { return u.accesses.Load() }

// LineCrossings returns how many accesses spanned a cache-line boundary.
func (u *UnalignedUnit) LineCrossings() uint64 { return u.crossings.Load() }

// Fixups returns how many misaligned ordinary accesses were emulated by
// the split path.
func (u *UnalignedUnit) Fixups() uint64 { return u.fixups.Load() }

// Pattern returns the current access-pattern hint.
func (u *UnalignedUnit) Pattern() AccessPattern {
	return AccessPattern(u.pattern.Load())
}

// Execute runs LDQ_U or STQ_U. A zero-register LDQ_U is the canonical
// UNOP and performs no access at all.
func (u *UnalignedUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	ea := effectiveAddr(cpu, inst)
	aligned := ea &^ 7

	switch inst.Opcode {
	case insts.OpLDQ_U:
		if inst.Ra == 31 {
			return nil
		}
		u.observe(ea, 8, false, cpu.ID)
		v, err := u.port.Load(cpu.ID, aligned, 8)
		if err != nil {
			return err
		}
		out.writeReg(inst.Ra, v)
		return nil

	case insts.OpSTQ_U:
		u.observe(ea, 8, true, cpu.ID)
		v := cpu.ReadReg(inst.Ra)
		if err := u.port.Store(cpu.ID, aligned, 8, v); err != nil {
			return err
		}
		out.recordWrite(aligned, 8, v)
		return nil
	}
	return NewTrap(ExcIllegalOpcode)
}

// observe counts the aligned access, detects a line crossing of the
// unaligned span, warms the second line when one is crossed, and feeds
// the classifier.
func (u *UnalignedUnit) observe(ea uint64, size uint8, store bool, cpu int) {
	u.accesses.Add(1)
	if crossesLine(ea, size) {
		u.crossings.Add(1)
		u.accesses.Add(1)
		u.port.Prefetch(cpu, (ea&^7)+8, store)
	}
	u.reclassify(ea)
}

// crossesLine reports whether [ea, ea+size) spans a cache-line boundary.
func crossesLine(ea uint64, size uint8) bool {
	return ea/unalignedLineSize != (ea+uint64(size)-1)/unalignedLineSize
}

// reclassify updates the pattern hint from the delta between the last
// two addresses. Zero means the same quadword is being re-touched;
// small forward deltas are sequential; a full line is streaming; other
// quadword multiples (either direction) are strided.
func (u *UnalignedUnit) reclassify(ea uint64) {
	u.mu.Lock()
	prev, have := u.prevAddr, u.havePrev
	u.prevAddr, u.havePrev = ea, true
	u.mu.Unlock()

	if !have {
		return
	}
	delta := int64(ea - prev)
	var p AccessPattern
	switch {
	case delta == 0:
		p = PatternPacked
	case delta > 0 && delta <= 8:
		p = PatternSequential
	case delta == unalignedLineSize:
		p = PatternStreaming
	case delta%8 == 0:
		p = PatternStrided
	default:
		p = PatternRandom
	}
	u.pattern.Store(uint32(p))
}

// CombineQuadwords assembles the unaligned quadword spanning ea from its
// two aligned halves. The low (1<<(offset*8))-1 mask selects the bytes
// the high half contributes.
func CombineQuadwords(lo, hi, ea uint64) uint64 {
	off := ea & 7
	if off == 0 {
		return lo
	}
	lowMask := uint64(1)<<(off*8) - 1
	return (hi&lowMask)<<((8-off)*8) | lo>>(off*8)
}

// FixupLoad emulates a misaligned load of size bytes with one or two
// aligned quadword accesses. The value returns zero-extended.
func (u *UnalignedUnit) FixupLoad(cpu int, ea uint64, size uint8) (uint64, error) {
	u.fixups.Add(1)
	if crossesLine(ea, size) {
		u.crossings.Add(1)
	}
	u.reclassify(ea)

	aligned := ea &^ 7
	u.accesses.Add(1)
	lo, err := u.port.Load(cpu, aligned, 8)
	if err != nil {
		return 0, err
	}
	var hi uint64
	if ea&7+uint64(size) > 8 {
		u.accesses.Add(1)
		hi, err = u.port.Load(cpu, aligned+8, 8)
		if err != nil {
			return 0, err
		}
	}
	v := CombineQuadwords(lo, hi, ea)
	if size < 8 {
		v &= uint64(1)<<(size*8) - 1
	}
	return v, nil
}

// FixupStore emulates a misaligned store of size bytes by merging the
// value into the covering aligned quadwords. The read-merge-write pairs
// are not atomic with respect to other CPUs; the fixup path trades that
// for never faulting on alignment.
func (u *UnalignedUnit) FixupStore(cpu int, ea uint64, size uint8, value uint64) error {
	u.fixups.Add(1)
	if crossesLine(ea, size) {
		u.crossings.Add(1)
	}
	u.reclassify(ea)

	off := ea & 7
	aligned := ea &^ 7
	n1 := 8 - off
	if uint64(size) < n1 {
		n1 = uint64(size)
	}
	if err := u.merge(cpu, aligned, off, n1, value); err != nil {
		return err
	}
	if n1 < uint64(size) {
		return u.merge(cpu, aligned+8, 0, uint64(size)-n1, value>>(n1*8))
	}
	return nil
}

// merge read-modify-writes n bytes of value into the aligned quadword
// at addr, starting at byte offset off.
func (u *UnalignedUnit) merge(cpu int, addr, off, n, value uint64) error {
	u.accesses.Add(2)
	old, err := u.port.Load(cpu, addr, 8)
	if err != nil {
		return err
	}
	m := maskBytes(n) << (off * 8)
	merged := old&^m | value<<(off*8)&m
	return u.port.Store(cpu, addr, 8, merged)
}

// maskBytes returns a mask covering the low n bytes.
func maskBytes(n uint64) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(n*8) - 1
}
