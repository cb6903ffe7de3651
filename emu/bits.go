package emu

import (
	"math/bits"

	"github.com/sarchlab/axpsim/insts"
)

// BitUnit executes the bit-manipulation group: full-count shifts,
// rotates, population counts, deposit/extract, bit-field primitives,
// Gray codes, Morton interleave, and the 8x8 bit-matrix transpose.
// Unary ops take the Rb-or-literal operand; Ra carries the data
// operand where two inputs are needed.
type BitUnit struct{}

// NewBitUnit creates a bit-manipulation executor.
func NewBitUnit() *BitUnit {
	return &BitUnit{}
}

// Execute runs one bit-class instruction.
func (u *BitUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	ra := cpu.ReadReg(inst.Ra)
	opb := operandB(cpu, inst)

	var r uint64
	switch inst.Fn {
	case insts.FnSHLQ:
		// Go shifts already yield 0 past the width.
		r = ra << opb
	case insts.FnSHRQ:
		r = ra >> opb
	case insts.FnSARQ:
		if opb > 63 {
			opb = 63
		}
		r = uint64(int64(ra) >> opb)
	case insts.FnROLQ:
		r = bits.RotateLeft64(ra, int(opb&0x3F))
	case insts.FnRORQ:
		r = bits.RotateLeft64(ra, -int(opb&0x3F))

	case insts.FnCTPOP:
		r = uint64(bits.OnesCount64(opb))
	case insts.FnCTLZ:
		r = uint64(bits.LeadingZeros64(opb))
	case insts.FnCTTZ:
		r = uint64(bits.TrailingZeros64(opb))
	case insts.FnCTLO:
		r = uint64(bits.LeadingZeros64(^opb))
	case insts.FnCTTO:
		r = uint64(bits.TrailingZeros64(^opb))
	case insts.FnCTPOPB:
		r = lanePop(opb, 8)
	case insts.FnCTPOPW:
		r = lanePop(opb, 16)
	case insts.FnCTPOPL:
		r = lanePop(opb, 32)

	case insts.FnPDEP:
		r = pdep(ra, opb)
	case insts.FnPEXT:
		r = pext(ra, opb)
	case insts.FnBEXTR:
		start, mask := fieldSpec(opb)
		r = ra >> start & mask
	case insts.FnBLSI:
		r = opb & -opb
	case insts.FnBLSR:
		r = opb & (opb - 1)
	case insts.FnBLSMSK:
		r = opb ^ (opb - 1)
	case insts.FnBFINS:
		start, mask := fieldSpec(opb)
		r = ra << start & (mask << start)
	case insts.FnBFCLR:
		start, mask := fieldSpec(opb)
		r = ra &^ (mask << start)
	case insts.FnBFSET:
		start, mask := fieldSpec(opb)
		r = ra | mask<<start

	case insts.FnBREV:
		r = bits.Reverse64(opb)
	case insts.FnPARQ:
		r = uint64(bits.OnesCount64(opb) & 1)
	case insts.FnGRAY:
		r = opb ^ opb>>1
	case insts.FnIGRAY:
		r = igray(opb)
	case insts.FnMORTON:
		r = morton(uint32(ra), uint32(opb))
	case insts.FnTRANS8:
		r = trans8(opb)

	default:
		return NewTrap(ExcIllegalOpcode)
	}
	out.writeReg(inst.Rc, r)
	return nil
}

// fieldSpec unpacks a bit-field descriptor: start in bits 8..15,
// length in bits 0..7. Lengths of 64 and over select the whole
// quadword.
func fieldSpec(v uint64) (start uint64, mask uint64) {
	start = v >> 8 & 0xFF
	length := v & 0xFF
	if length >= 64 {
		return start, ^uint64(0)
	}
	return start, 1<<length - 1
}

// lanePop counts set bits independently in each width-bit lane.
func lanePop(v uint64, width uint) uint64 {
	mask := maskBytes(uint64(width / 8))
	var r uint64
	for sh := uint(0); sh < 64; sh += width {
		n := bits.OnesCount64(v >> sh & mask)
		r |= uint64(n) << sh
	}
	return r
}

// pdep scatters the low-order bits of v into the set positions of mask.
func pdep(v, mask uint64) uint64 {
	var r uint64
	for m := mask; m != 0; m &= m - 1 {
		if v&1 != 0 {
			r |= m & -m
		}
		v >>= 1
	}
	return r
}

// pext gathers the bits of v at the set positions of mask into the
// low-order bits of the result.
func pext(v, mask uint64) uint64 {
	var r uint64
	var out uint
	for m := mask; m != 0; m &= m - 1 {
		if v&(m&-m) != 0 {
			r |= 1 << out
		}
		out++
	}
	return r
}

// igray decodes a Gray code by folding the running prefix XOR.
func igray(v uint64) uint64 {
	v ^= v >> 32
	v ^= v >> 16
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v
}

// morton interleaves two 32-bit values, a on the even bit positions
// and b on the odd ones.
func morton(a, b uint32) uint64 {
	return spread1(uint64(a)) | spread1(uint64(b))<<1
}

// spread1 spaces the low 32 bits of v one position apart.
func spread1(v uint64) uint64 {
	v &= 0xFFFFFFFF
	v = (v | v<<16) & 0x0000FFFF0000FFFF
	v = (v | v<<8) & 0x00FF00FF00FF00FF
	v = (v | v<<4) & 0x0F0F0F0F0F0F0F0F
	v = (v | v<<2) & 0x3333333333333333
	v = (v | v<<1) & 0x5555555555555555
	return v
}

// trans8 transposes the 8x8 bit matrix whose row i is byte i, using
// three delta swaps.
func trans8(v uint64) uint64 {
	t := (v ^ v>>7) & 0x00AA00AA00AA00AA
	v = v ^ t ^ t<<7
	t = (v ^ v>>14) & 0x0000CCCC0000CCCC
	v = v ^ t ^ t<<14
	t = (v ^ v>>28) & 0x00000000F0F0F0F0
	v = v ^ t ^ t<<28
	return v
}
