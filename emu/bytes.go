package emu

import (
	"math/bits"
	"sync/atomic"

	"github.com/sarchlab/axpsim/insts"
)

// ByteUnit executes byte manipulation and the multimedia extension:
// extract/insert/mask at byte positions, ZAP, packing, lane-wise
// min/max, and the saturating vector arithmetic. Saturating results
// clamp to the lane bounds and bump the saturation counter instead of
// trapping.
type ByteUnit struct {
	saturations atomic.Uint64
}

// NewByteUnit creates a byte-manipulation executor.
func NewByteUnit() *ByteUnit {
	return &ByteUnit{}
}

// Saturations returns how many lane results were clamped.
func (u *ByteUnit) Saturations() uint64 {
	return u.saturations.Load()
}

// Execute runs one byte-class instruction.
func (u *ByteUnit) Execute(cpu *CPU, inst *insts.Instruction, out *Outcome) error {
	ra := cpu.ReadReg(inst.Ra)
	rb := operandB(cpu, inst)

	var r uint64
	switch inst.Opcode {
	case insts.OpINTS:
		v, err := bytePosition(inst.Fn, ra, rb)
		if err != nil {
			return err
		}
		r = v
	case insts.OpFPTI:
		v, err := u.media(inst.Fn, ra, rb)
		if err != nil {
			return err
		}
		r = v
	default:
		return NewTrap(ExcIllegalOpcode)
	}
	out.writeReg(inst.Rc, r)
	return nil
}

// bytePosition implements the extract/insert/mask block and ZAP. The
// byte position is the low 3 bits of the second operand.
func bytePosition(fn uint16, ra, rb uint64) (uint64, error) {
	n := rb & 7
	switch fn {
	case insts.FnEXTBL:
		return extLow(ra, n, 1), nil
	case insts.FnEXTWL:
		return extLow(ra, n, 2), nil
	case insts.FnEXTLL:
		return extLow(ra, n, 4), nil
	case insts.FnEXTQL:
		return extLow(ra, n, 8), nil
	case insts.FnEXTWH:
		return extHigh(ra, n, 2), nil
	case insts.FnEXTLH:
		return extHigh(ra, n, 4), nil
	case insts.FnEXTQH:
		return extHigh(ra, n, 8), nil

	case insts.FnINSBL:
		return insLow(ra, n, 1), nil
	case insts.FnINSWL:
		return insLow(ra, n, 2), nil
	case insts.FnINSLL:
		return insLow(ra, n, 4), nil
	case insts.FnINSQL:
		return insLow(ra, n, 8), nil
	case insts.FnINSWH:
		return insHigh(ra, n, 2), nil
	case insts.FnINSLH:
		return insHigh(ra, n, 4), nil
	case insts.FnINSQH:
		return insHigh(ra, n, 8), nil

	case insts.FnMSKBL:
		return mskLow(ra, n, 1), nil
	case insts.FnMSKWL:
		return mskLow(ra, n, 2), nil
	case insts.FnMSKLL:
		return mskLow(ra, n, 4), nil
	case insts.FnMSKQL:
		return mskLow(ra, n, 8), nil
	case insts.FnMSKWH:
		return mskHigh(ra, n, 2), nil
	case insts.FnMSKLH:
		return mskHigh(ra, n, 4), nil
	case insts.FnMSKQH:
		return mskHigh(ra, n, 8), nil

	case insts.FnZAP:
		return ra &^ zapMask(uint8(rb)), nil
	case insts.FnZAPNOT:
		return ra & zapMask(uint8(rb)), nil
	}
	return 0, NewTrap(ExcIllegalOpcode)
}

// extLow extracts size bytes starting at byte position n.
func extLow(v, n, size uint64) uint64 {
	return v >> (n * 8) & maskBytes(size)
}

// extHigh extracts the bytes a size-wide datum at position n spills
// into the next quadword. Position zero spills nothing.
func extHigh(v, n, size uint64) uint64 {
	if n == 0 {
		return 0
	}
	return v << ((8 - n) * 8) & maskBytes(size)
}

// insLow positions the low size bytes of v for merging at byte n.
func insLow(v, n, size uint64) uint64 {
	return v & maskBytes(size) << (n * 8)
}

// insHigh positions the bytes that spill into the next quadword.
func insHigh(v, n, size uint64) uint64 {
	if n == 0 {
		return 0
	}
	return v & maskBytes(size) >> ((8 - n) * 8)
}

// mskLow clears the bytes a size-wide datum at position n occupies.
func mskLow(v, n, size uint64) uint64 {
	return v &^ (maskBytes(size) << (n * 8))
}

// mskHigh clears the spilled bytes in the next quadword.
func mskHigh(v, n, size uint64) uint64 {
	if n == 0 {
		return v
	}
	return v &^ (maskBytes(size) >> ((8 - n) * 8))
}

// zapMask expands each set bit of m into a full byte of ones.
func zapMask(m uint8) uint64 {
	var r uint64
	for i := 0; i < 8; i++ {
		if m&(1<<i) != 0 {
			r |= 0xFF << (i * 8)
		}
	}
	return r
}

// media implements the opcode 0x1C byte group: sign extension, swaps,
// packing, lane min/max, and the saturating vector extension.
func (u *ByteUnit) media(fn uint16, ra, rb uint64) (uint64, error) {
	switch fn {
	case insts.FnSEXTB:
		return uint64(int64(int8(rb))), nil
	case insts.FnSEXTW:
		return uint64(int64(int16(rb))), nil
	case insts.FnBSWAPQ:
		return bits.ReverseBytes64(rb), nil
	case insts.FnBSWAPL:
		// canonical longword form, like LDL
		return sext32(bits.ReverseBytes32(uint32(rb))), nil
	case insts.FnREPB:
		return (rb & 0xFF) * 0x0101010101010101, nil

	case insts.FnPERR:
		return perr(ra, rb), nil
	case insts.FnPKWB:
		return rb&0xFF | rb>>8&0xFF00 | rb>>16&0xFF0000 | rb>>24&0xFF000000, nil
	case insts.FnPKLB:
		return rb&0xFF | rb>>24&0xFF00, nil
	case insts.FnUNPKBW:
		return rb&0xFF | rb<<8&0xFF0000 | rb<<16&0xFF00000000 | rb<<24&0xFF000000000000, nil
	case insts.FnUNPKBL:
		return rb&0xFF | rb<<24&0xFF00000000, nil

	case insts.FnMINUB8:
		return mapBytes(ra, rb, minu8), nil
	case insts.FnMAXUB8:
		return mapBytes(ra, rb, maxu8), nil
	case insts.FnMINSB8:
		return mapBytes(ra, rb, func(a, b uint8) uint8 {
			if int8(a) < int8(b) {
				return a
			}
			return b
		}), nil
	case insts.FnMAXSB8:
		return mapBytes(ra, rb, func(a, b uint8) uint8 {
			if int8(a) > int8(b) {
				return a
			}
			return b
		}), nil
	case insts.FnMINUW4:
		return mapWords(ra, rb, func(a, b uint16) uint16 {
			if a < b {
				return a
			}
			return b
		}), nil
	case insts.FnMAXUW4:
		return mapWords(ra, rb, func(a, b uint16) uint16 {
			if a > b {
				return a
			}
			return b
		}), nil
	case insts.FnMINSW4:
		return mapWords(ra, rb, func(a, b uint16) uint16 {
			if int16(a) < int16(b) {
				return a
			}
			return b
		}), nil
	case insts.FnMAXSW4:
		return mapWords(ra, rb, func(a, b uint16) uint16 {
			if int16(a) > int16(b) {
				return a
			}
			return b
		}), nil

	case insts.FnSADDL2:
		return u.lanes32(ra, rb, func(a, b int64) int64 { return a + b }), nil
	case insts.FnSSUBL2:
		return u.lanes32(ra, rb, func(a, b int64) int64 { return a - b }), nil
	case insts.FnSMULL2:
		return u.lanes32(ra, rb, func(a, b int64) int64 { return a * b }), nil
	case insts.FnVADDW4:
		return u.lanes16(ra, rb, func(a, b int32) int32 { return a + b }), nil
	case insts.FnVSUBW4:
		return u.lanes16(ra, rb, func(a, b int32) int32 { return a - b }), nil
	case insts.FnVMULW4:
		return u.lanes16(ra, rb, func(a, b int32) int32 { return a * b }), nil

	case insts.FnDOTW4:
		return dotw4(ra, rb), nil
	case insts.FnCROSSW:
		return u.crossw(ra, rb), nil
	case insts.FnBLEND:
		return blend(uint32(ra), uint32(rb)), nil
	case insts.FnBILIN:
		return bilin(ra, uint32(rb)), nil
	}
	return 0, NewTrap(ExcIllegalOpcode)
}

// perr sums the absolute differences of the eight unsigned byte lanes.
func perr(ra, rb uint64) uint64 {
	var sum uint64
	for i := 0; i < 8; i++ {
		a := ra >> (i * 8) & 0xFF
		b := rb >> (i * 8) & 0xFF
		if a >= b {
			sum += a - b
		} else {
			sum += b - a
		}
	}
	return sum
}

func minu8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

func maxu8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func mapBytes(ra, rb uint64, f func(a, b uint8) uint8) uint64 {
	var r uint64
	for i := 0; i < 8; i++ {
		v := f(uint8(ra>>(i*8)), uint8(rb>>(i*8)))
		r |= uint64(v) << (i * 8)
	}
	return r
}

func mapWords(ra, rb uint64, f func(a, b uint16) uint16) uint64 {
	var r uint64
	for i := 0; i < 4; i++ {
		v := f(uint16(ra>>(i*16)), uint16(rb>>(i*16)))
		r |= uint64(v) << (i * 16)
	}
	return r
}

// lanes32 applies f to the two signed 32-bit lanes, clamping each result
// to the longword bounds.
func (u *ByteUnit) lanes32(ra, rb uint64, f func(a, b int64) int64) uint64 {
	var r uint64
	for i := 0; i < 2; i++ {
		a := int64(int32(ra >> (i * 32)))
		b := int64(int32(rb >> (i * 32)))
		v := f(a, b)
		if v > 0x7FFFFFFF {
			v = 0x7FFFFFFF
			u.saturations.Add(1)
		} else if v < -0x80000000 {
			v = -0x80000000
			u.saturations.Add(1)
		}
		r |= uint64(uint32(v)) << (i * 32)
	}
	return r
}

// lanes16 applies f to the four signed 16-bit lanes, clamping each
// result to the word bounds.
func (u *ByteUnit) lanes16(ra, rb uint64, f func(a, b int32) int32) uint64 {
	var r uint64
	for i := 0; i < 4; i++ {
		a := int32(int16(ra >> (i * 16)))
		b := int32(int16(rb >> (i * 16)))
		r |= uint64(u.sat16(f(a, b))) << (i * 16)
	}
	return r
}

func (u *ByteUnit) sat16(v int32) uint16 {
	if v > 0x7FFF {
		u.saturations.Add(1)
		return 0x7FFF
	}
	if v < -0x8000 {
		u.saturations.Add(1)
		return 0x8000
	}
	return uint16(v)
}

// dotw4 is the signed dot product of the four 16-bit lanes.
func dotw4(ra, rb uint64) uint64 {
	var sum int64
	for i := 0; i < 4; i++ {
		a := int64(int16(ra >> (i * 16)))
		b := int64(int16(rb >> (i * 16)))
		sum += a * b
	}
	return uint64(sum)
}

// crossw computes the cross product of the 3-vectors in the low three
// 16-bit lanes. Each component saturates to word bounds; lane 3 is
// cleared.
func (u *ByteUnit) crossw(ra, rb uint64) uint64 {
	var a, b [3]int32
	for i := 0; i < 3; i++ {
		a[i] = int32(int16(ra >> (i * 16)))
		b[i] = int32(int16(rb >> (i * 16)))
	}
	c0 := u.sat16(a[1]*b[2] - a[2]*b[1])
	c1 := u.sat16(a[2]*b[0] - a[0]*b[2])
	c2 := u.sat16(a[0]*b[1] - a[1]*b[0])
	return uint64(c0) | uint64(c1)<<16 | uint64(c2)<<32
}

// blend linearly interpolates each 8-bit channel of two RGBA pixels.
// The blend factor is pixel p's alpha channel (byte 3); the rounding
// bias keeps 255-vs-0 endpoints exact.
func blend(p, q uint32) uint64 {
	alpha := uint32(p >> 24 & 0xFF)
	var r uint32
	for ch := 0; ch < 4; ch++ {
		a := p >> (ch * 8) & 0xFF
		b := q >> (ch * 8) & 0xFF
		v := (a*alpha + b*(255-alpha) + 127) / 255
		r |= v << (ch * 8)
	}
	return uint64(r)
}

// bilin bilinearly filters the four 16-bit texels packed in ra
// (t00, t10, t01, t11) with 8-bit fractions fx and fy in the low bytes
// of rb.
func bilin(ra uint64, rb uint32) uint64 {
	t00 := uint64(uint16(ra))
	t10 := uint64(uint16(ra >> 16))
	t01 := uint64(uint16(ra >> 32))
	t11 := uint64(uint16(ra >> 48))
	fx := uint64(rb & 0xFF)
	fy := uint64(rb >> 8 & 0xFF)

	h0 := t00*(256-fx) + t10*fx
	h1 := t01*(256-fx) + t11*fx
	return (h0*(256-fy) + h1*fy) >> 16
}
