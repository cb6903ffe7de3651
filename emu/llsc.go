package emu

import (
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// LockUnit executes the load-locked/store-conditional family. The
// reservation bookkeeping itself lives behind the port (the shared
// ReservationTable); this unit handles addressing, alignment, and the
// success value written back by the conditional stores.
type LockUnit struct {
	port MemPort

	locked      atomic.Uint64
	conditional atomic.Uint64
}

// NewLockUnit creates a lock executor running against the given port.
func NewLockUnit(port MemPort) *LockUnit {
	return &LockUnit{port: port}
}

// LoadLocked returns the number of load-locked operations issued.
func (u *LockUnit) LoadLocked() uint64 { return u.locked.Load() }

// StoreConditional returns the number of conditional stores attempted.
func (u *LockUnit) StoreConditional() uint64 { return u.conditional.Load() }

// Execute runs one LL/SC instruction.
func (u *LockUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	ea := effectiveAddr(cpu, inst)

	switch inst.Opcode {
	case insts.OpLDL_L:
		return u.loadLocked(cpu, inst, out, ea, 4)
	case insts.OpLDQ_L:
		return u.loadLocked(cpu, inst, out, ea, 8)
	case insts.OpSTL_C:
		return u.storeConditional(cpu, inst, out, ea, 4)
	case insts.OpSTQ_C:
		return u.storeConditional(cpu, inst, out, ea, 8)
	}
	return NewTrap(ExcIllegalOpcode)
}

func (u *LockUnit) loadLocked(cpu *CPU, inst *insts.Instruction, out *Outcome,
	ea uint64, size uint8) error {
	if err := checkAlign(ea, size); err != nil {
		return err
	}
	u.locked.Add(1)
	v, err := u.port.LoadLocked(cpu.ID, ea, size)
	if err != nil {
		return err
	}
	if size == 4 {
		v = sext32(uint32(v))
	}
	out.writeReg(inst.Ra, v)
	return nil
}

// storeConditional attempts the store and writes 1 or 0 into Ra. The
// issuing CPU's reservation is consumed either way.
func (u *LockUnit) storeConditional(cpu *CPU, inst *insts.Instruction, out *Outcome,
	ea uint64, size uint8) error {
	if err := checkAlign(ea, size); err != nil {
		return err
	}
	u.conditional.Add(1)
	value := cpu.ReadReg(inst.Ra)
	if size < 8 {
		value &= 1<<(size*8) - 1
	}
	ok, err := u.port.StoreConditional(cpu.ID, ea, size, value)
	if err != nil {
		return err
	}
	if ok {
		out.recordWrite(ea, size, value)
	}
	out.writeReg(inst.Ra, boolToReg(ok))
	return nil
}
