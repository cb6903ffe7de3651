// Package emu provides functional Alpha AXP emulation.
package emu

import (
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// LoadStoreUnit executes the aligned memory family: address generation
// (LDA/LDAH), the integer loads and stores, and the four floating-point
// formats, which are widened and narrowed on the way through. Accesses
// that are not size-aligned raise AlignmentFault before touching memory.
type LoadStoreUnit struct {
	port  MemPort
	fixup *UnalignedUnit

	loads      atomic.Uint64
	stores     atomic.Uint64
	prefetches atomic.Uint64
}

// NewLoadStoreUnit creates a memory executor running against the given
// port.
func NewLoadStoreUnit(port MemPort) *LoadStoreUnit {
	return &LoadStoreUnit{port: port}
}

// EnableFixup routes misaligned accesses through the unaligned unit's
// split path instead of raising AlignmentFault.
func (u *LoadStoreUnit) EnableFixup(fixup *UnalignedUnit) {
	u.fixup = fixup
}

// Loads returns the number of loads performed.
func (u *LoadStoreUnit) Loads() uint64 { return u.loads.Load() }

// Stores returns the number of stores performed.
func (u *LoadStoreUnit) Stores() uint64 { return u.stores.Load() }

// Prefetches returns the number of loads turned into prefetch hints by a
// zero-register destination.
func (u *LoadStoreUnit) Prefetches() uint64 { return u.prefetches.Load() }

// effectiveAddr computes base plus the sign-extended displacement.
func effectiveAddr(cpu *CPU, inst *insts.Instruction) uint64 {
	return cpu.ReadReg(inst.Rb) + uint64(int64(inst.Disp))
}

// checkAlign raises AlignmentFault when ea is not a multiple of size.
func checkAlign(ea uint64, size uint8) error {
	if size > 1 && ea&uint64(size-1) != 0 {
		return TrapAt(ExcAlignmentFault, ea)
	}
	return nil
}

// Execute runs one decoded memory instruction.
func (u *LoadStoreUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	ea := effectiveAddr(cpu, inst)

	switch inst.Opcode {
	case insts.OpLDA:
		out.writeReg(inst.Ra, ea)
		return nil
	case insts.OpLDAH:
		out.writeReg(inst.Ra, cpu.ReadReg(inst.Rb)+uint64(int64(inst.Disp)*65536))
		return nil

	case insts.OpLDBU:
		return u.load(cpu, inst, out, ea, 1, zext)
	case insts.OpLDWU:
		return u.load(cpu, inst, out, ea, 2, zext)
	case insts.OpLDL:
		return u.load(cpu, inst, out, ea, 4, func(v uint64) uint64 { return sext32(uint32(v)) })
	case insts.OpLDQ:
		return u.load(cpu, inst, out, ea, 8, zext)

	case insts.OpSTB:
		return u.store(cpu, inst, out, ea, 1, cpu.ReadReg(inst.Ra))
	case insts.OpSTW:
		return u.store(cpu, inst, out, ea, 2, cpu.ReadReg(inst.Ra))
	case insts.OpSTL:
		return u.store(cpu, inst, out, ea, 4, cpu.ReadReg(inst.Ra))
	case insts.OpSTQ:
		return u.store(cpu, inst, out, ea, 8, cpu.ReadReg(inst.Ra))

	case insts.OpLDS:
		return u.loadFP(cpu, inst, out, ea, 4, func(v uint64) uint64 { return ldsExpand(uint32(v)) })
	case insts.OpLDF:
		return u.loadFP(cpu, inst, out, ea, 4, func(v uint64) uint64 { return ldfExpand(uint32(v)) })
	case insts.OpLDT:
		return u.loadFP(cpu, inst, out, ea, 8, zext)
	case insts.OpLDG:
		return u.loadFP(cpu, inst, out, ea, 8, ldgSwap)

	case insts.OpSTS:
		return u.store(cpu, inst, out, ea, 4, uint64(stsCompress(cpu.ReadFReg(inst.Ra))))
	case insts.OpSTF:
		return u.store(cpu, inst, out, ea, 4, uint64(stfCompress(cpu.ReadFReg(inst.Ra))))
	case insts.OpSTT:
		return u.store(cpu, inst, out, ea, 8, cpu.ReadFReg(inst.Ra))
	case insts.OpSTG:
		return u.store(cpu, inst, out, ea, 8, ldgSwap(cpu.ReadFReg(inst.Ra)))
	}
	return NewTrap(ExcIllegalOpcode)
}

func zext(v uint64) uint64 { return v }

// load performs an integer load. A zero-register destination turns the
// access into a prefetch hint, which neither faults nor reads.
func (u *LoadStoreUnit) load(cpu *CPU, inst *insts.Instruction, out *Outcome,
	ea uint64, size uint8, extend func(uint64) uint64) error {
	if inst.Ra == 31 {
		u.prefetches.Add(1)
		u.port.Prefetch(cpu.ID, ea, false)
		return nil
	}
	v, err := u.read(cpu, ea, size)
	if err != nil {
		return err
	}
	out.writeReg(inst.Ra, extend(v))
	return nil
}

// loadFP performs a floating-point load, widening the memory format into
// the register layout. F31 destinations are prefetch hints.
func (u *LoadStoreUnit) loadFP(cpu *CPU, inst *insts.Instruction, out *Outcome,
	ea uint64, size uint8, widen func(uint64) uint64) error {
	if inst.Ra == 31 {
		u.prefetches.Add(1)
		u.port.Prefetch(cpu.ID, ea, false)
		return nil
	}
	v, err := u.read(cpu, ea, size)
	if err != nil {
		return err
	}
	out.writeFReg(inst.Ra, widen(v))
	return nil
}

// read performs the aligned load, or the fixup split when the address
// is misaligned and fixup is enabled.
func (u *LoadStoreUnit) read(cpu *CPU, ea uint64, size uint8) (uint64, error) {
	if err := checkAlign(ea, size); err != nil {
		if u.fixup == nil {
			return 0, err
		}
		return u.fixup.FixupLoad(cpu.ID, ea, size)
	}
	u.loads.Add(1)
	return u.port.Load(cpu.ID, ea, size)
}

// store checks alignment, performs the write, and records it in the
// outcome.
func (u *LoadStoreUnit) store(cpu *CPU, inst *insts.Instruction, out *Outcome,
	ea uint64, size uint8, value uint64) error {
	if size < 8 {
		value &= 1<<(size*8) - 1
	}
	if err := checkAlign(ea, size); err != nil {
		if u.fixup == nil {
			return err
		}
		if err := u.fixup.FixupStore(cpu.ID, ea, size, value); err != nil {
			return err
		}
		out.recordWrite(ea, size, value)
		return nil
	}
	if err := u.port.Store(cpu.ID, ea, size, value); err != nil {
		return err
	}
	u.stores.Add(1)
	out.recordWrite(ea, size, value)
	return nil
}

// isStoreOpcode reports whether the opcode writes memory. The latency
// model uses it to split load and store costs.
func isStoreOpcode(opcode uint8) bool {
	switch opcode {
	case insts.OpSTB, insts.OpSTW, insts.OpSTL, insts.OpSTQ,
		insts.OpSTF, insts.OpSTG, insts.OpSTS, insts.OpSTT,
		insts.OpSTQ_U, insts.OpSTL_C, insts.OpSTQ_C:
		return true
	}
	return false
}
