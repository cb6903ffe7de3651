package insts

// Encoding helpers. These build instruction words field by field and are
// the inverse of Decode for every implemented operation.

// EncodeOperate encodes a register-form operate instruction.
func EncodeOperate(opcode, ra, rb uint8, fn uint16, rc uint8) uint32 {
	var word uint32
	word |= uint32(opcode&0x3F) << 26
	word |= uint32(ra&0x1F) << 21
	word |= uint32(rb&0x1F) << 16
	word |= uint32(fn&0x7F) << 5
	word |= uint32(rc & 0x1F)
	return word
}

// EncodeOperateLit encodes a literal-form operate instruction.
func EncodeOperateLit(opcode, ra, lit uint8, fn uint16, rc uint8) uint32 {
	var word uint32
	word |= uint32(opcode&0x3F) << 26
	word |= uint32(ra&0x1F) << 21
	word |= uint32(lit) << 13
	word |= 1 << 12
	word |= uint32(fn&0x7F) << 5
	word |= uint32(rc & 0x1F)
	return word
}

// EncodeFPOp encodes a floating-point operate instruction.
func EncodeFPOp(opcode, fa, fb uint8, fn uint16, fc uint8) uint32 {
	var word uint32
	word |= uint32(opcode&0x3F) << 26
	word |= uint32(fa&0x1F) << 21
	word |= uint32(fb&0x1F) << 16
	word |= uint32(fn&0x7FF) << 5
	word |= uint32(fc & 0x1F)
	return word
}

// EncodeMemory encodes a memory-format instruction.
func EncodeMemory(opcode, ra, rb uint8, disp int16) uint32 {
	var word uint32
	word |= uint32(opcode&0x3F) << 26
	word |= uint32(ra&0x1F) << 21
	word |= uint32(rb&0x1F) << 16
	word |= uint32(uint16(disp))
	return word
}

// EncodeMemoryFn encodes an opcode 0x18 instruction, the function code
// occupying the displacement field.
func EncodeMemoryFn(ra, rb uint8, fn uint16) uint32 {
	var word uint32
	word |= uint32(OpMISC) << 26
	word |= uint32(ra&0x1F) << 21
	word |= uint32(rb&0x1F) << 16
	word |= uint32(fn)
	return word
}

// EncodeBranch encodes a branch instruction. disp is in instructions,
// relative to the updated PC.
func EncodeBranch(opcode, ra uint8, disp int32) uint32 {
	var word uint32
	word |= uint32(opcode&0x3F) << 26
	word |= uint32(ra&0x1F) << 21
	word |= uint32(disp) & 0x1FFFFF
	return word
}

// EncodeJump encodes an opcode 0x1A jump.
func EncodeJump(jumpFn, ra, rb uint8, hint uint16) uint32 {
	var word uint32
	word |= uint32(OpJSR) << 26
	word |= uint32(ra&0x1F) << 21
	word |= uint32(rb&0x1F) << 16
	word |= uint32(jumpFn&0x3) << 14
	word |= uint32(hint & 0x3FFF)
	return word
}

// EncodePal encodes CALL_PAL.
func EncodePal(fn uint32) uint32 {
	return uint32(OpCallPal)<<26 | fn&0x3FFFFFF
}

// Encode rebuilds the instruction word from decoded fields. For every
// word w with a non-illegal decode, Encode(Decode(w)) == w.
func Encode(inst Instruction) uint32 {
	switch inst.Format {
	case FormatPAL:
		return EncodePal(inst.PalFn)
	case FormatMemory:
		return EncodeMemory(inst.Opcode, inst.Ra, inst.Rb, int16(inst.Disp))
	case FormatMemoryFn:
		return EncodeMemoryFn(inst.Ra, inst.Rb, inst.Fn)
	case FormatJump:
		return EncodeJump(inst.JumpFn, inst.Ra, inst.Rb, inst.JumpHint)
	case FormatBranch:
		return EncodeBranch(inst.Opcode, inst.Ra, inst.BranchDisp)
	case FormatOperate:
		if inst.HasLit {
			return EncodeOperateLit(inst.Opcode, inst.Ra, inst.Lit, inst.Fn, inst.Rc)
		}
		return EncodeOperate(inst.Opcode, inst.Ra, inst.Rb, inst.Fn, inst.Rc)
	case FormatFPOp:
		return EncodeFPOp(inst.Opcode, inst.Ra, inst.Rb, inst.Fn, inst.Rc)
	}
	return inst.Raw
}
