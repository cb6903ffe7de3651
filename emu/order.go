package emu

import (
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// OrderUnit executes memory barriers, cache-control hints, cycle
// counter reads, and the atomic read-modify-write group. Barriers map
// onto the port's fence edges; in a single in-order interpreter the
// trap barriers have nothing left to drain and only count.
type OrderUnit struct {
	port MemPort

	barriers atomic.Uint64
	drains   atomic.Uint64
	hints    atomic.Uint64
	atomics  atomic.Uint64
	casHits  atomic.Uint64
	casFails atomic.Uint64
}

// NewOrderUnit creates a memory-order executor against the given port.
func NewOrderUnit(port MemPort) *OrderUnit {
	return &OrderUnit{port: port}
}

// Barriers returns the number of MB, WMB, and RMB executed.
func (u *OrderUnit) Barriers() uint64 {
	return u.barriers.Load()
}

// Drains returns the number of TRAPB and EXCB executed.
func (u *OrderUnit) Drains() uint64 {
	return u.drains.Load()
}

// Hints returns the number of FETCH, ECB, and WH64 hints issued.
func (u *OrderUnit) Hints() uint64 {
	return u.hints.Load()
}

// Atomics returns the number of read-modify-write ops executed.
func (u *OrderUnit) Atomics() uint64 {
	return u.atomics.Load()
}

// CompareAndSwapHits returns how many CAS ops swapped.
func (u *OrderUnit) CompareAndSwapHits() uint64 {
	return u.casHits.Load()
}

// CompareAndSwapFails returns how many CAS ops found a mismatch.
func (u *OrderUnit) CompareAndSwapFails() uint64 {
	return u.casFails.Load()
}

// Execute runs one memory-order instruction.
func (u *OrderUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	if inst.Opcode == insts.OpMISC {
		return u.misc(cpu, inst, out)
	}
	return u.atomic(cpu, inst, out)
}

func (u *OrderUnit) misc(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	rb := cpu.ReadReg(inst.Rb)

	switch inst.Fn {
	case insts.FnTRAPB, insts.FnEXCB:
		u.drains.Add(1)

	case insts.FnMB:
		u.barriers.Add(1)
		u.port.Fence(cpu.ID, FenceFull)
	case insts.FnWMB:
		u.barriers.Add(1)
		u.port.Fence(cpu.ID, FenceStore)
	case insts.FnRMB:
		u.barriers.Add(1)
		u.port.Fence(cpu.ID, FenceLoad)

	case insts.FnFETCH:
		u.hints.Add(1)
		u.port.Prefetch(cpu.ID, rb, false)
	case insts.FnFETCHM:
		u.hints.Add(1)
		u.port.Prefetch(cpu.ID, rb, true)
	case insts.FnECB:
		u.hints.Add(1)
		u.port.Evict(cpu.ID, rb)
	case insts.FnWH64:
		u.hints.Add(1)
		u.port.WriteHint64(cpu.ID, rb)

	case insts.FnRPCC:
		out.writeReg(inst.Ra, cpu.Cycles)
	case insts.FnRC:
		out.writeReg(inst.Ra, boolToReg(cpu.PS.IntrFlag))
		cpu.PS.IntrFlag = false
	case insts.FnRS:
		out.writeReg(inst.Ra, boolToReg(cpu.PS.IntrFlag))
		cpu.PS.IntrFlag = true

	default:
		return NewTrap(ExcIllegalOpcode)
	}
	return nil
}

// atomic executes the opcode 0x1C read-modify-write group. Ra holds
// the address, the second operand the datum, and Rc receives the prior
// memory value; for compare-and-swap the prior Rc value is the
// expected one. Longword forms need 4-byte alignment and deliver their
// results in canonical form, quadword forms need 8.
func (u *OrderUnit) atomic(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	addr := cpu.ReadReg(inst.Ra)
	operand := operandB(cpu, inst)

	size := uint8(8)
	switch inst.Fn {
	case insts.FnCASL, insts.FnXCHGL, insts.FnFAADDL:
		size = 4
		operand = uint64(uint32(operand))
	}
	if err := checkAlign(addr, size); err != nil {
		return err
	}
	u.atomics.Add(1)

	var prev uint64
	var err error
	switch inst.Fn {
	case insts.FnCASL, insts.FnCASQ:
		expected := cpu.ReadReg(inst.Rc)
		if size == 4 {
			expected = uint64(uint32(expected))
		}
		var swapped bool
		prev, swapped, err = u.port.CompareExchange(cpu.ID, addr, size, expected, operand)
		if err != nil {
			return err
		}
		if swapped {
			u.casHits.Add(1)
			out.recordWrite(addr, size, operand)
		} else {
			u.casFails.Add(1)
		}

	case insts.FnXCHGL, insts.FnXCHGQ:
		prev, err = u.port.Exchange(cpu.ID, addr, size, operand)
		if err != nil {
			return err
		}
		out.recordWrite(addr, size, operand)

	case insts.FnFAADDL, insts.FnFAADDQ, insts.FnFAANDQ, insts.FnFAORQ, insts.FnFAXORQ:
		op := AtomicAdd
		switch inst.Fn {
		case insts.FnFAANDQ:
			op = AtomicAnd
		case insts.FnFAORQ:
			op = AtomicOr
		case insts.FnFAXORQ:
			op = AtomicXor
		}
		prev, err = u.port.FetchOp(cpu.ID, addr, size, op, operand)
		if err != nil {
			return err
		}
		out.recordWrite(addr, size, applyAtomicOp(op, prev, operand))

	default:
		return NewTrap(ExcIllegalOpcode)
	}

	if size == 4 {
		prev = sext32(uint32(prev))
	}
	out.writeReg(inst.Rc, prev)
	return nil
}
