package insts

// Decoder decodes Alpha machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new Alpha instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit Alpha instruction word. Decoding is total:
// every word produces an Instruction, and words outside the implemented
// set carry ClassIllegal.
func (d *Decoder) Decode(word uint32) Instruction {
	inst := Instruction{
		Raw:    word,
		Opcode: uint8(word >> 26),
		Format: FormatUnknown,
		Class:  ClassIllegal,
	}

	switch {
	case inst.Opcode == OpCallPal:
		d.decodePal(word, &inst)
	case inst.Opcode >= OpLDA && inst.Opcode <= OpSTQ_U:
		d.decodeMemory(word, &inst)
		inst.Class = loadStoreClass(inst.Opcode)
	case inst.Opcode >= OpINTA && inst.Opcode <= OpINTM:
		d.decodeOperate(word, &inst)
		inst.Class = classifyInteger(inst.Opcode, inst.Fn)
	case inst.Opcode >= OpITFP && inst.Opcode <= OpFLTL:
		d.decodeFPOperate(word, &inst)
		inst.Class = classifyFP(inst.Opcode, inst.Fn)
	case inst.Opcode == OpMISC:
		d.decodeMemoryFn(word, &inst)
		if _, ok := miscNames[inst.Fn]; ok {
			inst.Class = ClassMemOrder
		}
	case inst.Opcode == OpJSR:
		d.decodeJump(word, &inst)
		inst.Class = ClassControl
	case inst.Opcode == OpFPTI:
		d.decodeOperate(word, &inst)
		inst.Class = classifyFPTI(inst.Fn)
	case inst.Opcode >= OpLDF && inst.Opcode <= OpSTQ_C:
		d.decodeMemory(word, &inst)
		inst.Class = loadStoreClass(inst.Opcode)
	case inst.Opcode >= OpBR:
		d.decodeBranch(word, &inst)
		inst.Class = ClassControl
	}

	return inst
}

// decodePal decodes CALL_PAL.
// Format: opcode | 26-bit PALcode function
func (d *Decoder) decodePal(word uint32, inst *Instruction) {
	inst.Format = FormatPAL
	inst.Class = ClassPal
	inst.PalFn = word & 0x3FFFFFF
}

// decodeMemory decodes the memory format.
// Format: opcode | Ra | Rb | disp16
func (d *Decoder) decodeMemory(word uint32, inst *Instruction) {
	inst.Format = FormatMemory
	inst.Ra = uint8((word >> 21) & 0x1F)
	inst.Rb = uint8((word >> 16) & 0x1F)
	inst.Disp = int32(int16(word & 0xFFFF))
}

// decodeMemoryFn decodes the memory format with a function code in
// place of the displacement (opcode 0x18).
func (d *Decoder) decodeMemoryFn(word uint32, inst *Instruction) {
	inst.Format = FormatMemoryFn
	inst.Ra = uint8((word >> 21) & 0x1F)
	inst.Rb = uint8((word >> 16) & 0x1F)
	inst.Fn = uint16(word & 0xFFFF)
}

// decodeJump decodes the jump format (opcode 0x1A).
// Format: opcode | Ra | Rb | fn2 | hint14
func (d *Decoder) decodeJump(word uint32, inst *Instruction) {
	inst.Format = FormatJump
	inst.Ra = uint8((word >> 21) & 0x1F)
	inst.Rb = uint8((word >> 16) & 0x1F)
	inst.JumpFn = uint8((word >> 14) & 0x3)
	inst.JumpHint = uint16(word & 0x3FFF)
}

// decodeBranch decodes the branch format.
// Format: opcode | Ra | disp21 (instruction-granular, sign-extended)
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	inst.Format = FormatBranch
	inst.Ra = uint8((word >> 21) & 0x1F)
	inst.BranchDisp = int32(word<<11) >> 11
}

// decodeOperate decodes the integer operate format.
// Format: opcode | Ra | Rb | 000 | 0 | fn7 | Rc
//     or: opcode | Ra | lit8    | 1 | fn7 | Rc
func (d *Decoder) decodeOperate(word uint32, inst *Instruction) {
	inst.Format = FormatOperate
	inst.Ra = uint8((word >> 21) & 0x1F)
	inst.Rc = uint8(word & 0x1F)
	inst.Fn = uint16((word >> 5) & 0x7F)

	if word&(1<<12) != 0 {
		inst.HasLit = true
		inst.Lit = uint8((word >> 13) & 0xFF)
	} else {
		inst.Rb = uint8((word >> 16) & 0x1F)
	}
}

// decodeFPOperate decodes the floating-point operate format.
// Format: opcode | Fa | Fb | fn11 | Fc
func (d *Decoder) decodeFPOperate(word uint32, inst *Instruction) {
	inst.Format = FormatFPOp
	inst.Ra = uint8((word >> 21) & 0x1F)
	inst.Rb = uint8((word >> 16) & 0x1F)
	inst.Rc = uint8(word & 0x1F)
	inst.Fn = uint16((word >> 5) & 0x7FF)
}

func loadStoreClass(opcode uint8) Class {
	switch opcode {
	case OpLDQ_U, OpSTQ_U:
		return ClassUnaligned
	case OpLDL_L, OpLDQ_L, OpSTL_C, OpSTQ_C:
		return ClassLLSC
	default:
		return ClassLoadStore
	}
}

// cmovFns are the opcode 0x11 functions executed by the control unit
// rather than the integer unit.
var cmovFns = map[uint16]bool{
	FnCMOVLBS: true, FnCMOVLBC: true,
	FnCMOVEQ: true, FnCMOVNE: true,
	FnCMOVLT: true, FnCMOVGE: true,
	FnCMOVLE: true, FnCMOVGT: true,
}

// shiftFns are the opcode 0x12 functions executed by the integer unit;
// the rest of the opcode is byte manipulation.
var shiftFns = map[uint16]bool{
	FnSLL: true, FnSRL: true, FnSRA: true,
}

func classifyInteger(opcode uint8, fn uint16) Class {
	switch opcode {
	case OpINTA:
		if _, ok := intaNames[fn]; ok {
			return ClassInteger
		}
	case OpINTL:
		if _, ok := intlNames[fn]; !ok {
			return ClassIllegal
		}
		if cmovFns[fn] {
			return ClassControl
		}
		return ClassInteger
	case OpINTS:
		if _, ok := intsNames[fn]; !ok {
			return ClassIllegal
		}
		if shiftFns[fn] {
			return ClassInteger
		}
		return ClassBytes
	case OpINTM:
		if _, ok := intmNames[fn]; ok {
			return ClassInteger
		}
	}
	return ClassIllegal
}

func classifyFP(opcode uint8, fn uint16) Class {
	switch opcode {
	case OpITFP:
		base := fn & FPFnMask
		switch base {
		case FPITOFS, FPITOFF, FPITOFT:
			// transfers take no rounding or trap qualifiers
			if fn == base {
				return ClassFP
			}
		default:
			if _, ok := itfpNames[base]; ok {
				return ClassFP
			}
		}
	case OpFLTV:
		if _, ok := fltvNames[fn&FPFnMask]; ok {
			return ClassFP
		}
	case OpFLTI:
		if fn == FnCVTST || fn == FnCVTSTS {
			return ClassFP
		}
		if _, ok := fltiNames[fn&FPFnMask]; ok {
			return ClassFP
		}
	case OpFLTL:
		if _, ok := fltlNames[fn]; ok {
			return ClassFP
		}
	}
	return ClassIllegal
}

func classifyFPTI(fn uint16) Class {
	switch {
	case fn == FnSEXTB || fn == FnSEXTW:
		return ClassBytes
	case fn >= FnBREV && fn <= FnCTTO:
		return ClassBits
	case fn >= FnBSWAPQ && fn <= FnREPB:
		return ClassBytes
	case fn >= FnBFINS && fn <= FnBFSET:
		return ClassBits
	case fn >= FnSADDL2 && fn <= FnBILIN:
		return ClassBytes
	case fn >= FnSHLQ && fn <= FnSARQ:
		return ClassBits
	case fn == FnCTPOP || fn == FnCTLZ || fn == FnCTTZ:
		return ClassBits
	case fn == FnPERR || (fn >= FnUNPKBW && fn <= FnMAXSW4):
		return ClassBytes
	case fn >= FnCASL && fn <= FnFAXORQ:
		return ClassMemOrder
	case fn == FnFTOIT || fn == FnFTOIS:
		return ClassFP
	}
	return ClassIllegal
}
