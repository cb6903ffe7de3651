package insts

import "fmt"

var intaNames = map[uint16]string{
	FnADDL: "ADDL", FnS4ADDL: "S4ADDL", FnSUBL: "SUBL", FnS4SUBL: "S4SUBL",
	FnCMPBGE: "CMPBGE", FnS8ADDL: "S8ADDL", FnS8SUBL: "S8SUBL",
	FnCMPULT: "CMPULT", FnADDQ: "ADDQ", FnS4ADDQ: "S4ADDQ", FnSUBQ: "SUBQ",
	FnS4SUBQ: "S4SUBQ", FnCMPEQ: "CMPEQ", FnS8ADDQ: "S8ADDQ",
	FnS8SUBQ: "S8SUBQ", FnCMPULE: "CMPULE", FnADDLV: "ADDL/V",
	FnSUBLV: "SUBL/V", FnCMPLT: "CMPLT", FnADDQV: "ADDQ/V",
	FnSUBQV: "SUBQ/V", FnCMPLE: "CMPLE",
}

var intlNames = map[uint16]string{
	FnAND: "AND", FnBIC: "BIC", FnCMOVLBS: "CMOVLBS", FnCMOVLBC: "CMOVLBC",
	FnBIS: "BIS", FnCMOVEQ: "CMOVEQ", FnCMOVNE: "CMOVNE", FnORNOT: "ORNOT",
	FnXOR: "XOR", FnCMOVLT: "CMOVLT", FnCMOVGE: "CMOVGE", FnEQV: "EQV",
	FnAMASK: "AMASK", FnCMOVLE: "CMOVLE", FnCMOVGT: "CMOVGT",
	FnIMPLVER: "IMPLVER",
}

var intsNames = map[uint16]string{
	FnMSKBL: "MSKBL", FnEXTBL: "EXTBL", FnINSBL: "INSBL",
	FnMSKWL: "MSKWL", FnEXTWL: "EXTWL", FnINSWL: "INSWL",
	FnMSKLL: "MSKLL", FnEXTLL: "EXTLL", FnINSLL: "INSLL",
	FnZAP: "ZAP", FnZAPNOT: "ZAPNOT", FnMSKQL: "MSKQL",
	FnSRL: "SRL", FnEXTQL: "EXTQL", FnSLL: "SLL", FnINSQL: "INSQL",
	FnSRA: "SRA", FnMSKWH: "MSKWH", FnINSWH: "INSWH", FnEXTWH: "EXTWH",
	FnMSKLH: "MSKLH", FnINSLH: "INSLH", FnEXTLH: "EXTLH",
	FnMSKQH: "MSKQH", FnINSQH: "INSQH", FnEXTQH: "EXTQH",
}

var intmNames = map[uint16]string{
	FnMULL: "MULL", FnMULQ: "MULQ", FnUMULH: "UMULH",
	FnMULLV: "MULL/V", FnMULQV: "MULQ/V",
}

var miscNames = map[uint16]string{
	FnTRAPB: "TRAPB", FnEXCB: "EXCB", FnMB: "MB", FnWMB: "WMB",
	FnRMB: "RMB", FnFETCH: "FETCH", FnFETCHM: "FETCH_M", FnRPCC: "RPCC",
	FnRC: "RC", FnECB: "ECB", FnRS: "RS", FnWH64: "WH64",
}

var fptiNames = map[uint16]string{
	FnSEXTB: "SEXTB", FnSEXTW: "SEXTW", FnBREV: "BREV", FnPARQ: "PARQ",
	FnGRAY: "GRAY", FnIGRAY: "IGRAY", FnMORTON: "MORTON",
	FnTRANS8: "TRANS8", FnPDEP: "PDEP", FnPEXT: "PEXT", FnBEXTR: "BEXTR",
	FnBLSI: "BLSI", FnBLSR: "BLSR", FnBLSMSK: "BLSMSK",
	FnCTPOPB: "CTPOPB", FnCTPOPW: "CTPOPW", FnCTPOPL: "CTPOPL",
	FnROLQ: "ROLQ", FnRORQ: "RORQ", FnCTLO: "CTLO", FnCTTO: "CTTO",
	FnBSWAPQ: "BSWAPQ", FnBSWAPL: "BSWAPL", FnREPB: "REPB",
	FnBFINS: "BFINS", FnBFCLR: "BFCLR", FnBFSET: "BFSET",
	FnSADDL2: "SADDL2", FnSSUBL2: "SSUBL2", FnSMULL2: "SMULL2",
	FnVADDW4: "VADDW4", FnVSUBW4: "VSUBW4", FnVMULW4: "VMULW4",
	FnDOTW4: "DOTW4", FnCROSSW: "CROSSW", FnBLEND: "BLEND",
	FnBILIN: "BILIN", FnSHLQ: "SHLQ", FnSHRQ: "SHRQ", FnSARQ: "SARQ",
	FnCTPOP: "CTPOP", FnPERR: "PERR", FnCTLZ: "CTLZ",
	FnCTTZ: "CTTZ", FnUNPKBW: "UNPKBW", FnUNPKBL: "UNPKBL",
	FnPKWB: "PKWB", FnPKLB: "PKLB", FnMINSB8: "MINSB8",
	FnMINSW4: "MINSW4", FnMINUB8: "MINUB8", FnMINUW4: "MINUW4",
	FnMAXUB8: "MAXUB8", FnMAXUW4: "MAXUW4", FnMAXSB8: "MAXSB8",
	FnMAXSW4: "MAXSW4", FnCASL: "CASL", FnCASQ: "CASQ",
	FnXCHGL: "XCHGL", FnXCHGQ: "XCHGQ", FnFAADDL: "FAADDL",
	FnFAADDQ: "FAADDQ", FnFAANDQ: "FAANDQ", FnFAORQ: "FAORQ",
	FnFAXORQ: "FAXORQ", FnFTOIT: "FTOIT", FnFTOIS: "FTOIS",
}

var itfpNames = map[uint16]string{
	FPFMADDS: "FMADDS", FPFMSUBS: "FMSUBS", FPFNMADDS: "FNMADDS",
	FPFNMSUBS: "FNMSUBS", FPITOFS: "ITOFS", FPVADDS: "VADDS",
	FPVSUBS: "VSUBS", FPVMULS: "VMULS", FPSQRTF: "SQRTF",
	FPSQRTS: "SQRTS", FPITOFF: "ITOFF", FPFMADDT: "FMADDT",
	FPFMSUBT: "FMSUBT", FPFNMADDT: "FNMADDT", FPFNMSUBT: "FNMSUBT",
	FPITOFT: "ITOFT", FPSQRTG: "SQRTG", FPSQRTT: "SQRTT",
}

var fltvNames = map[uint16]string{
	FPADDF: "ADDF", FPSUBF: "SUBF", FPMULF: "MULF", FPDIVF: "DIVF",
	FPADDD: "ADDD", FPSUBD: "SUBD", FPMULD: "MULD", FPDIVD: "DIVD",
	FPCVTDG: "CVTDG", FPADDG: "ADDG", FPSUBG: "SUBG", FPMULG: "MULG",
	FPDIVG: "DIVG", FPCMPGEQ: "CMPGEQ", FPCMPGLT: "CMPGLT",
	FPCMPGLE: "CMPGLE", FPCVTGF: "CVTGF", FPCVTGD: "CVTGD",
	FPCVTGQ: "CVTGQ", FPCVTQF: "CVTQF", FPCVTQG: "CVTQG",
}

var fltiNames = map[uint16]string{
	FPADDS: "ADDS", FPSUBS: "SUBS", FPMULS: "MULS", FPDIVS: "DIVS",
	FPADDT: "ADDT", FPSUBT: "SUBT", FPMULT: "MULT", FPDIVT: "DIVT",
	FPCMPUN: "CMPTUN", FPCMPEQ: "CMPTEQ", FPCMPLT: "CMPTLT",
	FPCMPLE: "CMPTLE", FPCVTTS: "CVTTS", FPCVTTQ: "CVTTQ",
	FPCVTQS: "CVTQS", FPCVTQT: "CVTQT",
}

var fltlNames = map[uint16]string{
	FnCVTLQ: "CVTLQ", FnCPYS: "CPYS", FnCPYSN: "CPYSN", FnCPYSE: "CPYSE",
	FnMT_FPCR: "MT_FPCR", FnMF_FPCR: "MF_FPCR", FnFCMOVUN: "FCMOVUN",
	FnFCMOVORD: "FCMOVORD", FnFCMOVEQ: "FCMOVEQ", FnFCMOVNE: "FCMOVNE",
	FnFCMOVLT: "FCMOVLT", FnFCMOVGE: "FCMOVGE", FnFCMOVLE: "FCMOVLE",
	FnFCMOVGT: "FCMOVGT", FnCVTQL: "CVTQL",
	0x130: "CVTQL/V", 0x530: "CVTQL/SV",
}

var memNames = map[uint8]string{
	OpLDA: "LDA", OpLDAH: "LDAH", OpLDBU: "LDBU", OpLDQ_U: "LDQ_U",
	OpLDWU: "LDWU", OpSTW: "STW", OpSTB: "STB", OpSTQ_U: "STQ_U",
	OpLDF: "LDF", OpLDG: "LDG", OpLDS: "LDS", OpLDT: "LDT",
	OpSTF: "STF", OpSTG: "STG", OpSTS: "STS", OpSTT: "STT",
	OpLDL: "LDL", OpLDQ: "LDQ", OpLDL_L: "LDL_L", OpLDQ_L: "LDQ_L",
	OpSTL: "STL", OpSTQ: "STQ", OpSTL_C: "STL_C", OpSTQ_C: "STQ_C",
}

var brNames = map[uint8]string{
	OpBR: "BR", OpFBEQ: "FBEQ", OpFBLT: "FBLT", OpFBLE: "FBLE",
	OpBSR: "BSR", OpFBNE: "FBNE", OpFBGE: "FBGE", OpFBGT: "FBGT",
	OpBLBC: "BLBC", OpBEQ: "BEQ", OpBLT: "BLT", OpBLE: "BLE",
	OpBLBS: "BLBS", OpBNE: "BNE", OpBGE: "BGE", OpBGT: "BGT",
}

var jmpNames = [4]string{"JMP", "JSR", "RET", "JSR_COROUTINE"}

var fpRndSuffix = map[uint16]string{
	FPRndChopped: "/C", FPRndMinus: "/M", FPRndNormal: "", FPRndDynamic: "/D",
}

// Mnemonic returns the assembler name of the instruction, with the FP
// rounding qualifier appended where one applies. Illegal words report
// as "ILLEGAL".
func (i Instruction) Mnemonic() string {
	if i.Class == ClassIllegal {
		return "ILLEGAL"
	}
	switch i.Opcode {
	case OpCallPal:
		return "CALL_PAL"
	case OpINTA:
		return intaNames[i.Fn]
	case OpINTL:
		return intlNames[i.Fn]
	case OpINTS:
		return intsNames[i.Fn]
	case OpINTM:
		return intmNames[i.Fn]
	case OpITFP:
		return fpName(itfpNames, i.Fn)
	case OpFLTV:
		return fpName(fltvNames, i.Fn)
	case OpFLTI:
		if i.Fn == FnCVTST {
			return "CVTST"
		}
		if i.Fn == FnCVTSTS {
			return "CVTST/S"
		}
		return fpName(fltiNames, i.Fn)
	case OpFLTL:
		return fltlNames[i.Fn]
	case OpMISC:
		return miscNames[i.Fn]
	case OpJSR:
		return jmpNames[i.JumpFn]
	case OpFPTI:
		return fptiNames[i.Fn]
	}
	if name, ok := memNames[i.Opcode]; ok {
		return name
	}
	if name, ok := brNames[i.Opcode]; ok {
		return name
	}
	return "ILLEGAL"
}

func fpName(names map[uint16]string, fn uint16) string {
	base, ok := names[fn&FPFnMask]
	if !ok {
		return "ILLEGAL"
	}
	return base + fpRndSuffix[fn&FPRndMask]
}

// String renders the instruction in assembler-like form.
func (i Instruction) String() string {
	m := i.Mnemonic()
	switch i.Format {
	case FormatPAL:
		return fmt.Sprintf("%s %#x", m, i.PalFn)
	case FormatMemory:
		return fmt.Sprintf("%s R%d, %d(R%d)", m, i.Ra, i.Disp, i.Rb)
	case FormatMemoryFn:
		return fmt.Sprintf("%s R%d, (R%d)", m, i.Ra, i.Rb)
	case FormatJump:
		return fmt.Sprintf("%s R%d, (R%d)", m, i.Ra, i.Rb)
	case FormatBranch:
		return fmt.Sprintf("%s R%d, %d", m, i.Ra, i.BranchDisp)
	case FormatOperate:
		if i.HasLit {
			return fmt.Sprintf("%s R%d, #%d, R%d", m, i.Ra, i.Lit, i.Rc)
		}
		return fmt.Sprintf("%s R%d, R%d, R%d", m, i.Ra, i.Rb, i.Rc)
	case FormatFPOp:
		return fmt.Sprintf("%s F%d, F%d, F%d", m, i.Ra, i.Rb, i.Rc)
	}
	return m
}
