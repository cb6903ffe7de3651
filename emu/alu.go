// Package emu provides functional Alpha AXP emulation.
package emu

import (
	"math/bits"
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// IntUnit executes the integer arithmetic, logical, shift, and multiply
// families (INTA, INTL, INTS, INTM). Trapping variants raise
// IntegerOverflow without writing the destination; non-trapping variants
// wrap and bump the overflow counter.
type IntUnit struct {
	amask   uint64
	implver uint64

	overflowWraps atomic.Uint64
}

// NewIntUnit creates an integer unit tuned for the given implementation
// generation. The family determines AMASK and IMPLVER results only; the
// instruction semantics are common to all generations.
func NewIntUnit(family EVFamily) *IntUnit {
	return &IntUnit{
		amask:   family.AmaskBits(),
		implver: family.Implver(),
	}
}

// OverflowWraps returns how many non-trapping operations wrapped.
func (u *IntUnit) OverflowWraps() uint64 {
	return u.overflowWraps.Load()
}

// operandB returns the second integer operand: the zero-extended 8-bit
// literal when the literal form is used, Rb otherwise.
func operandB(cpu *CPU, inst *insts.Instruction) uint64 {
	if inst.HasLit {
		return uint64(inst.Lit)
	}
	return cpu.ReadReg(inst.Rb)
}

// Execute runs one decoded integer instruction and stages the register
// write into out.
func (u *IntUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	ra := cpu.ReadReg(inst.Ra)
	rb := operandB(cpu, inst)

	switch inst.Opcode {
	case insts.OpINTA:
		return u.arith(inst, ra, rb, out)
	case insts.OpINTL:
		return u.logical(inst, ra, rb, out)
	case insts.OpINTS:
		return u.shift(inst, ra, rb, out)
	case insts.OpINTM:
		return u.multiply(inst, ra, rb, out)
	}
	return NewTrap(ExcIllegalOpcode)
}

func (u *IntUnit) arith(inst *insts.Instruction, ra, rb uint64, out *Outcome) error {
	var r uint64
	switch inst.Fn {
	case insts.FnADDL:
		r = u.addl(ra, rb)
	case insts.FnADDLV:
		sum, ok := addlChecked(ra, rb)
		if !ok {
			return NewTrap(ExcIntegerOverflow)
		}
		r = sum
	case insts.FnADDQ:
		r = u.addq(ra, rb)
	case insts.FnADDQV:
		sum, ok := addqChecked(ra, rb)
		if !ok {
			return NewTrap(ExcIntegerOverflow)
		}
		r = sum
	case insts.FnSUBL:
		r = u.subl(ra, rb)
	case insts.FnSUBLV:
		diff, ok := sublChecked(ra, rb)
		if !ok {
			return NewTrap(ExcIntegerOverflow)
		}
		r = diff
	case insts.FnSUBQ:
		r = u.subq(ra, rb)
	case insts.FnSUBQV:
		diff, ok := subqChecked(ra, rb)
		if !ok {
			return NewTrap(ExcIntegerOverflow)
		}
		r = diff
	case insts.FnS4ADDL:
		r = sext32(uint32(ra*4 + rb))
	case insts.FnS8ADDL:
		r = sext32(uint32(ra*8 + rb))
	case insts.FnS4ADDQ:
		r = ra*4 + rb
	case insts.FnS8ADDQ:
		r = ra*8 + rb
	case insts.FnS4SUBL:
		r = sext32(uint32(ra*4 - rb))
	case insts.FnS8SUBL:
		r = sext32(uint32(ra*8 - rb))
	case insts.FnS4SUBQ:
		r = ra*4 - rb
	case insts.FnS8SUBQ:
		r = ra*8 - rb
	case insts.FnCMPEQ:
		r = boolToReg(ra == rb)
	case insts.FnCMPLT:
		r = boolToReg(int64(ra) < int64(rb))
	case insts.FnCMPLE:
		r = boolToReg(int64(ra) <= int64(rb))
	case insts.FnCMPULT:
		r = boolToReg(ra < rb)
	case insts.FnCMPULE:
		r = boolToReg(ra <= rb)
	case insts.FnCMPBGE:
		r = cmpbge(ra, rb)
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	out.writeReg(inst.Rc, r)
	return nil
}

func (u *IntUnit) logical(inst *insts.Instruction, ra, rb uint64, out *Outcome) error {
	var r uint64
	switch inst.Fn {
	case insts.FnAND:
		r = ra & rb
	case insts.FnBIC:
		r = ra &^ rb
	case insts.FnBIS:
		r = ra | rb
	case insts.FnORNOT:
		r = ra | ^rb
	case insts.FnXOR:
		r = ra ^ rb
	case insts.FnEQV:
		r = ra ^ ^rb
	case insts.FnAMASK:
		r = rb &^ u.amask
	case insts.FnIMPLVER:
		r = u.implver
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	out.writeReg(inst.Rc, r)
	return nil
}

// shift handles the architectural shifts under the INTS opcode. The
// count is the low 6 bits of the operand.
func (u *IntUnit) shift(inst *insts.Instruction, ra, rb uint64, out *Outcome) error {
	n := rb & 0x3F
	var r uint64
	switch inst.Fn {
	case insts.FnSLL:
		r = ra << n
	case insts.FnSRL:
		r = ra >> n
	case insts.FnSRA:
		r = uint64(int64(ra) >> n)
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	out.writeReg(inst.Rc, r)
	return nil
}

func (u *IntUnit) multiply(inst *insts.Instruction, ra, rb uint64, out *Outcome) error {
	var r uint64
	switch inst.Fn {
	case insts.FnMULL:
		p := int64(int32(ra)) * int64(int32(rb))
		if p != int64(int32(p)) {
			u.overflowWraps.Add(1)
		}
		r = sext32(uint32(p))
	case insts.FnMULLV:
		p := int64(int32(ra)) * int64(int32(rb))
		if p != int64(int32(p)) {
			return NewTrap(ExcIntegerOverflow)
		}
		r = sext32(uint32(p))
	case insts.FnMULQ:
		p, over := mulqChecked(ra, rb)
		if over {
			u.overflowWraps.Add(1)
		}
		r = p
	case insts.FnMULQV:
		p, over := mulqChecked(ra, rb)
		if over {
			return NewTrap(ExcIntegerOverflow)
		}
		r = p
	case insts.FnUMULH:
		hi, _ := bits.Mul64(ra, rb)
		r = hi
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	out.writeReg(inst.Rc, r)
	return nil
}

func (u *IntUnit) addl(ra, rb uint64) uint64 {
	s := int64(int32(ra)) + int64(int32(rb))
	if s != int64(int32(s)) {
		u.overflowWraps.Add(1)
	}
	return sext32(uint32(s))
}

func (u *IntUnit) addq(ra, rb uint64) uint64 {
	s := ra + rb
	if addqOverflows(ra, rb, s) {
		u.overflowWraps.Add(1)
	}
	return s
}

func (u *IntUnit) subl(ra, rb uint64) uint64 {
	d := int64(int32(ra)) - int64(int32(rb))
	if d != int64(int32(d)) {
		u.overflowWraps.Add(1)
	}
	return sext32(uint32(d))
}

func (u *IntUnit) subq(ra, rb uint64) uint64 {
	d := ra - rb
	if subqOverflows(ra, rb, d) {
		u.overflowWraps.Add(1)
	}
	return d
}

func addlChecked(ra, rb uint64) (uint64, bool) {
	s := int64(int32(ra)) + int64(int32(rb))
	if s != int64(int32(s)) {
		return 0, false
	}
	return sext32(uint32(s)), true
}

func addqChecked(ra, rb uint64) (uint64, bool) {
	s := ra + rb
	if addqOverflows(ra, rb, s) {
		return 0, false
	}
	return s, true
}

func sublChecked(ra, rb uint64) (uint64, bool) {
	d := int64(int32(ra)) - int64(int32(rb))
	if d != int64(int32(d)) {
		return 0, false
	}
	return sext32(uint32(d)), true
}

func subqChecked(ra, rb uint64) (uint64, bool) {
	d := ra - rb
	if subqOverflows(ra, rb, d) {
		return 0, false
	}
	return d, true
}

// addqOverflows reports signed overflow of ra+rb=s: both operands share
// a sign the sum does not.
func addqOverflows(ra, rb, s uint64) bool {
	return (^(ra^rb)&(ra^s))>>63 != 0
}

// subqOverflows reports signed overflow of ra-rb=d: the operands differ
// in sign and the difference took rb's sign.
func subqOverflows(ra, rb, d uint64) bool {
	return ((ra^rb)&(ra^d))>>63 != 0
}

// mulqChecked returns the low 64 bits of the signed product and whether
// the full product exceeded 64 bits.
func mulqChecked(ra, rb uint64) (uint64, bool) {
	hi, lo := bits.Mul64(ra, rb)
	if int64(ra) < 0 {
		hi -= rb
	}
	if int64(rb) < 0 {
		hi -= ra
	}
	return lo, int64(hi) != int64(lo)>>63
}

// cmpbge compares the eight bytes of ra and rb as unsigned values and
// sets bit i of the result when byte i of ra >= byte i of rb.
func cmpbge(ra, rb uint64) uint64 {
	var r uint64
	for i := 0; i < 8; i++ {
		a := byte(ra >> (i * 8))
		b := byte(rb >> (i * 8))
		if a >= b {
			r |= 1 << i
		}
	}
	return r
}

func sext32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
