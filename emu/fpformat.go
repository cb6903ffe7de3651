package emu

import "math"

// Floating-point registers always hold 64 bits. T values are stored
// as-is; S, F, and G values are widened to a T-like layout on load and
// narrowed again on store. The helpers below implement those bit
// shuffles exactly as the load/store hardware does, with no rounding.

// ldsExpand widens an IEEE S memory longword into the register layout:
// the 8-bit exponent maps to 11 bits (0 stays 0, 255 becomes 2047,
// anything else gains the bias difference of 896) and the fraction
// shifts to bits 51:29.
func ldsExpand(m uint32) uint64 {
	sign := uint64(m>>31) & 1
	e := (m >> 23) & 0xFF
	frac := uint64(m & 0x7FFFFF)

	var exp uint64
	switch e {
	case 0:
		exp = 0
	case 0xFF:
		exp = 0x7FF
	default:
		exp = uint64(e) + 896
	}
	return sign<<63 | exp<<52 | frac<<29
}

// stsCompress narrows a register value back to the S memory format. It
// is a pure bit selection: bit 62 supplies the exponent MSB and bits
// 58:52 the rest, which inverts ldsExpand for every S-representable
// value.
func stsCompress(r uint64) uint32 {
	sign := uint32(r>>63) & 1
	expHi := uint32(r>>62) & 1
	expLo := uint32(r>>52) & 0x7F
	frac := uint32(r>>29) & 0x7FFFFF
	return sign<<31 | expHi<<30 | expLo<<23 | frac
}

// ldfExpand widens a VAX F memory longword. F stores its sign, exponent,
// and high fraction bits in the low 16-bit word, so the fields are
// gathered across the two halves before the exponent gains the 896 bias
// difference. A zero exponent maps to zero regardless of sign.
func ldfExpand(m uint32) uint64 {
	sign := uint64(m>>15) & 1
	e := (m >> 7) & 0xFF
	frac := uint64(m&0x7F)<<16 | uint64(m>>16)&0xFFFF

	var exp uint64
	if e != 0 {
		exp = uint64(e) + 896
	}
	return sign<<63 | exp<<52 | frac<<29
}

// stfCompress narrows a register value to the F memory format using the
// same exponent bit selection as stsCompress.
func stfCompress(r uint64) uint32 {
	sign := uint32(r>>63) & 1
	e := (uint32(r>>62)&1)<<7 | uint32(r>>52)&0x7F
	frac := uint32(r>>29) & 0x7FFFFF
	return (frac&0xFFFF)<<16 | sign<<15 | e<<7 | frac>>16
}

// ldgSwap converts between the VAX G/D memory layout and the register
// layout by swapping the four 16-bit words. The permutation is its own
// inverse, so stores use it too.
func ldgSwap(m uint64) uint64 {
	return m<<48 | (m&0xFFFF0000)<<16 | (m>>16)&0xFFFF0000 | m>>48
}

// tBits and tFloat convert between register bits and float64 for IEEE T
// operands.
func tBits(f float64) uint64 {
	return math.Float64bits(f)
}

func tFloat(r uint64) float64 {
	return math.Float64frombits(r)
}

// sFloat extracts the IEEE single value held in a register in the
// widened S layout.
func sFloat(r uint64) float32 {
	return math.Float32frombits(stsCompress(r))
}

// sRegBits widens a float32 into the register S layout.
func sRegBits(f float32) uint64 {
	return ldsExpand(math.Float32bits(f))
}

// tIsNaN reports whether the register holds a T-format NaN.
func tIsNaN(r uint64) bool {
	return r>>52&0x7FF == 0x7FF && r&0xFFFFFFFFFFFFF != 0
}

// tIsSNaN reports whether the register holds a signaling T NaN (quiet
// bit 51 clear).
func tIsSNaN(r uint64) bool {
	return tIsNaN(r) && r>>51&1 == 0
}

// tQuiet sets the quiet bit, turning a signaling NaN into the quiet NaN
// delivered as a default result.
func tQuiet(r uint64) uint64 {
	return r | 1<<51
}

// canonicalQNaN is the quiet NaN produced when no operand supplies one.
const canonicalQNaN = 0x7FF8000000000000

// fpTrue is the T-format value 2.0, written by IEEE compares that
// succeed.
const fpTrue = 0x4000000000000000

// vaxTrue is the G-format value 2.0, written by VAX compares that
// succeed.
const vaxTrue = 0x4020000000000000
