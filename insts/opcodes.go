package insts

// Primary opcodes, bits [31:26].
const (
	OpCallPal uint8 = 0x00
	OpLDA     uint8 = 0x08
	OpLDAH    uint8 = 0x09
	OpLDBU    uint8 = 0x0A
	OpLDQ_U   uint8 = 0x0B
	OpLDWU    uint8 = 0x0C
	OpSTW     uint8 = 0x0D
	OpSTB     uint8 = 0x0E
	OpSTQ_U   uint8 = 0x0F
	OpINTA    uint8 = 0x10 // add/sub/compare
	OpINTL    uint8 = 0x11 // logical, conditional move
	OpINTS    uint8 = 0x12 // shift, byte extract/insert/mask
	OpINTM    uint8 = 0x13 // multiply
	OpITFP    uint8 = 0x14 // int-to-FP transfer, square root, fused/paired ops
	OpFLTV    uint8 = 0x15 // VAX floating point
	OpFLTI    uint8 = 0x16 // IEEE floating point
	OpFLTL    uint8 = 0x17 // FP data movement, FPCR, FCMOV
	OpMISC    uint8 = 0x18 // barriers, prefetch, RPCC (function-selected)
	OpJSR     uint8 = 0x1A
	OpFPTI    uint8 = 0x1C // media, counts, bit extensions, atomics, FTOI
	OpLDF     uint8 = 0x20
	OpLDG     uint8 = 0x21
	OpLDS     uint8 = 0x22
	OpLDT     uint8 = 0x23
	OpSTF     uint8 = 0x24
	OpSTG     uint8 = 0x25
	OpSTS     uint8 = 0x26
	OpSTT     uint8 = 0x27
	OpLDL     uint8 = 0x28
	OpLDQ     uint8 = 0x29
	OpLDL_L   uint8 = 0x2A
	OpLDQ_L   uint8 = 0x2B
	OpSTL     uint8 = 0x2C
	OpSTQ     uint8 = 0x2D
	OpSTL_C   uint8 = 0x2E
	OpSTQ_C   uint8 = 0x2F
	OpBR      uint8 = 0x30
	OpFBEQ    uint8 = 0x31
	OpFBLT    uint8 = 0x32
	OpFBLE    uint8 = 0x33
	OpBSR     uint8 = 0x34
	OpFBNE    uint8 = 0x35
	OpFBGE    uint8 = 0x36
	OpFBGT    uint8 = 0x37
	OpBLBC    uint8 = 0x38
	OpBEQ     uint8 = 0x39
	OpBLT     uint8 = 0x3A
	OpBLE     uint8 = 0x3B
	OpBLBS    uint8 = 0x3C
	OpBNE     uint8 = 0x3D
	OpBGE     uint8 = 0x3E
	OpBGT     uint8 = 0x3F
)

// Opcode 0x10 function codes.
const (
	FnADDL   uint16 = 0x00
	FnS4ADDL uint16 = 0x02
	FnSUBL   uint16 = 0x09
	FnS4SUBL uint16 = 0x0B
	FnCMPBGE uint16 = 0x0F
	FnS8ADDL uint16 = 0x12
	FnS8SUBL uint16 = 0x1B
	FnCMPULT uint16 = 0x1D
	FnADDQ   uint16 = 0x20
	FnS4ADDQ uint16 = 0x22
	FnSUBQ   uint16 = 0x29
	FnS4SUBQ uint16 = 0x2B
	FnCMPEQ  uint16 = 0x2D
	FnS8ADDQ uint16 = 0x32
	FnS8SUBQ uint16 = 0x3B
	FnCMPULE uint16 = 0x3D
	FnADDLV  uint16 = 0x40
	FnSUBLV  uint16 = 0x49
	FnCMPLT  uint16 = 0x4D
	FnADDQV  uint16 = 0x60
	FnSUBQV  uint16 = 0x69
	FnCMPLE  uint16 = 0x6D
)

// Opcode 0x11 function codes.
const (
	FnAND     uint16 = 0x00
	FnBIC     uint16 = 0x08
	FnCMOVLBS uint16 = 0x14
	FnCMOVLBC uint16 = 0x16
	FnBIS     uint16 = 0x20
	FnCMOVEQ  uint16 = 0x24
	FnCMOVNE  uint16 = 0x26
	FnORNOT   uint16 = 0x28
	FnXOR     uint16 = 0x40
	FnCMOVLT  uint16 = 0x44
	FnCMOVGE  uint16 = 0x46
	FnEQV     uint16 = 0x48
	FnAMASK   uint16 = 0x61
	FnCMOVLE  uint16 = 0x64
	FnCMOVGT  uint16 = 0x66
	FnIMPLVER uint16 = 0x6C
)

// Opcode 0x12 function codes.
const (
	FnMSKBL  uint16 = 0x02
	FnEXTBL  uint16 = 0x06
	FnINSBL  uint16 = 0x0B
	FnMSKWL  uint16 = 0x12
	FnEXTWL  uint16 = 0x16
	FnINSWL  uint16 = 0x1B
	FnMSKLL  uint16 = 0x22
	FnEXTLL  uint16 = 0x26
	FnINSLL  uint16 = 0x2B
	FnZAP    uint16 = 0x30
	FnZAPNOT uint16 = 0x31
	FnMSKQL  uint16 = 0x32
	FnSRL    uint16 = 0x34
	FnEXTQL  uint16 = 0x36
	FnSLL    uint16 = 0x39
	FnINSQL  uint16 = 0x3B
	FnSRA    uint16 = 0x3C
	FnMSKWH  uint16 = 0x52
	FnINSWH  uint16 = 0x57
	FnEXTWH  uint16 = 0x5A
	FnMSKLH  uint16 = 0x62
	FnINSLH  uint16 = 0x67
	FnEXTLH  uint16 = 0x6A
	FnMSKQH  uint16 = 0x72
	FnINSQH  uint16 = 0x77
	FnEXTQH  uint16 = 0x7A
)

// Opcode 0x13 function codes.
const (
	FnMULL  uint16 = 0x00
	FnMULQ  uint16 = 0x20
	FnUMULH uint16 = 0x30
	FnMULLV uint16 = 0x40
	FnMULQV uint16 = 0x60
)

// Opcode 0x18 function codes, full 16-bit displacement field.
const (
	FnTRAPB  uint16 = 0x0000
	FnEXCB   uint16 = 0x0400
	FnMB     uint16 = 0x4000
	FnWMB    uint16 = 0x4400
	FnRMB    uint16 = 0x4800 // read barrier, simulator extension
	FnFETCH  uint16 = 0x8000
	FnFETCHM uint16 = 0xA000
	FnRPCC   uint16 = 0xC000
	FnRC     uint16 = 0xE000
	FnECB    uint16 = 0xE800
	FnRS     uint16 = 0xF000
	FnWH64   uint16 = 0xF800
)

// Opcode 0x1C function codes. 0x02-0x24 and 0x40-0x48 are simulator
// extensions in slots the architecture leaves unassigned.
const (
	FnSEXTB  uint16 = 0x00
	FnSEXTW  uint16 = 0x01
	FnBREV   uint16 = 0x02 // full 64-bit bit reversal
	FnPARQ   uint16 = 0x03 // even parity of the quadword
	FnGRAY   uint16 = 0x04 // binary to Gray code
	FnIGRAY  uint16 = 0x05 // Gray code to binary
	FnMORTON uint16 = 0x06 // interleave low 32-bit halves of Ra and Rb
	FnTRANS8 uint16 = 0x07 // transpose the 8x8 bit matrix
	FnPDEP   uint16 = 0x08
	FnPEXT   uint16 = 0x09
	FnBEXTR  uint16 = 0x0A // extract field, start/len packed in Rb
	FnBLSI   uint16 = 0x0B // isolate lowest set bit
	FnBLSR   uint16 = 0x0C // clear lowest set bit
	FnBLSMSK uint16 = 0x0D // mask up to and including lowest set bit
	FnCTPOPB uint16 = 0x0E // per-byte population count
	FnCTPOPW uint16 = 0x0F // per-word population count
	FnCTPOPL uint16 = 0x10 // per-longword population count
	FnROLQ   uint16 = 0x11
	FnRORQ   uint16 = 0x12
	FnCTLO   uint16 = 0x13 // count leading ones
	FnCTTO   uint16 = 0x14 // count trailing ones
	FnBSWAPQ uint16 = 0x15
	FnBSWAPL uint16 = 0x16
	FnREPB   uint16 = 0x17 // replicate low byte across all lanes
	FnBFINS  uint16 = 0x18 // insert field, start/len packed in Rb
	FnBFCLR  uint16 = 0x19
	FnBFSET  uint16 = 0x1A
	FnSADDL2 uint16 = 0x1B // 2x32 saturating add
	FnSSUBL2 uint16 = 0x1C
	FnSMULL2 uint16 = 0x1D
	FnVADDW4 uint16 = 0x1E // 4x16 saturating add
	FnVSUBW4 uint16 = 0x1F
	FnVMULW4 uint16 = 0x20
	FnDOTW4  uint16 = 0x21 // signed dot product of 4x16 lanes
	FnCROSSW uint16 = 0x22 // cross product of 3x16 lanes
	FnBLEND  uint16 = 0x23 // per-channel alpha blend of two RGBA32 pixels
	FnBILIN  uint16 = 0x24 // bilinear filter of 4x16 texels
	FnSHLQ   uint16 = 0x25 // shift left, full count, 64 and over yields 0
	FnSHRQ   uint16 = 0x26 // shift right, full count, 64 and over yields 0
	FnSARQ   uint16 = 0x27 // arithmetic right, 64 and over yields sign fill
	FnCTPOP  uint16 = 0x30
	FnPERR   uint16 = 0x31
	FnCTLZ   uint16 = 0x32
	FnCTTZ   uint16 = 0x33
	FnUNPKBW uint16 = 0x34
	FnUNPKBL uint16 = 0x35
	FnPKWB   uint16 = 0x36
	FnPKLB   uint16 = 0x37
	FnMINSB8 uint16 = 0x38
	FnMINSW4 uint16 = 0x39
	FnMINUB8 uint16 = 0x3A
	FnMINUW4 uint16 = 0x3B
	FnMAXUB8 uint16 = 0x3C
	FnMAXUW4 uint16 = 0x3D
	FnMAXSB8 uint16 = 0x3E
	FnMAXSW4 uint16 = 0x3F
	FnCASL   uint16 = 0x40 // compare-and-swap, prior Rc is the expected value
	FnCASQ   uint16 = 0x41
	FnXCHGL  uint16 = 0x42
	FnXCHGQ  uint16 = 0x43
	FnFAADDL uint16 = 0x44 // fetch-and-add
	FnFAADDQ uint16 = 0x45
	FnFAANDQ uint16 = 0x46
	FnFAORQ  uint16 = 0x47
	FnFAXORQ uint16 = 0x48
	FnFTOIT  uint16 = 0x70
	FnFTOIS  uint16 = 0x78
)

// FP operate function layout, bits [15:5] of the word:
// [10:8] trap qualifier, [7:6] rounding, [5:4] source type, [3:0] operation.
const (
	FPFnMask  uint16 = 0x3F // source+operation, identifies the base op
	FPRndMask uint16 = 0x0C0
	FPTrpMask uint16 = 0x700

	FPRndChopped uint16 = 0x000
	FPRndMinus   uint16 = 0x040
	FPRndNormal  uint16 = 0x080
	FPRndDynamic uint16 = 0x0C0

	FPTrpU uint16 = 0x100 // underflow enable
	FPTrpV uint16 = 0x100 // integer overflow enable, converts to integer
	FPTrpI uint16 = 0x200 // inexact enable
	FPTrpS uint16 = 0x400 // software completion
)

// IEEE base ops (opcode 0x16), function & FPFnMask.
const (
	FPADDS  uint16 = 0x00
	FPSUBS  uint16 = 0x01
	FPMULS  uint16 = 0x02
	FPDIVS  uint16 = 0x03
	FPADDT  uint16 = 0x20
	FPSUBT  uint16 = 0x21
	FPMULT  uint16 = 0x22
	FPDIVT  uint16 = 0x23
	FPCMPUN uint16 = 0x24
	FPCMPEQ uint16 = 0x25
	FPCMPLT uint16 = 0x26
	FPCMPLE uint16 = 0x27
	FPCVTTS uint16 = 0x2C
	FPCVTTQ uint16 = 0x2F
	FPCVTQS uint16 = 0x3C
	FPCVTQT uint16 = 0x3E
)

// CVTST shares the CVTTS base op and is distinguished by its trap field.
const (
	FnCVTST  uint16 = 0x2AC
	FnCVTSTS uint16 = 0x6AC
)

// VAX base ops (opcode 0x15), function & FPFnMask. The D-format
// arithmetic group is a simulator extension; the architecture itself
// only converts D through G.
const (
	FPADDF  uint16 = 0x00
	FPSUBF  uint16 = 0x01
	FPMULF  uint16 = 0x02
	FPDIVF  uint16 = 0x03
	FPADDD  uint16 = 0x10
	FPSUBD  uint16 = 0x11
	FPMULD  uint16 = 0x12
	FPDIVD  uint16 = 0x13
	FPCVTDG uint16 = 0x1E
	FPADDG  uint16 = 0x20
	FPSUBG  uint16 = 0x21
	FPMULG  uint16 = 0x22
	FPDIVG  uint16 = 0x23
	FPCMPGEQ uint16 = 0x25
	FPCMPGLT uint16 = 0x26
	FPCMPGLE uint16 = 0x27
	FPCVTGF uint16 = 0x2C
	FPCVTGD uint16 = 0x2D
	FPCVTGQ uint16 = 0x2F
	FPCVTQF uint16 = 0x3C
	FPCVTQG uint16 = 0x3E
)

// ITFP base ops (opcode 0x14), function & FPFnMask. The fused
// multiply-add and paired-single groups are simulator extensions;
// fused ops use Fc as the addend.
const (
	FPFMADDS  uint16 = 0x00
	FPFMSUBS  uint16 = 0x01
	FPFNMADDS uint16 = 0x02
	FPFNMSUBS uint16 = 0x03
	FPITOFS   uint16 = 0x04
	FPVADDS   uint16 = 0x05 // paired single add, two 32-bit lanes
	FPVSUBS   uint16 = 0x06
	FPVMULS   uint16 = 0x07
	FPSQRTF   uint16 = 0x0A
	FPSQRTS   uint16 = 0x0B
	FPITOFF   uint16 = 0x14
	FPFMADDT  uint16 = 0x20
	FPFMSUBT  uint16 = 0x21
	FPFNMADDT uint16 = 0x22
	FPFNMSUBT uint16 = 0x23
	FPITOFT   uint16 = 0x24
	FPSQRTG   uint16 = 0x2A
	FPSQRTT   uint16 = 0x2B
)

// FLTL function codes (opcode 0x17), full 11 bits with trap variants
// masked to the low byte. FCMOVUN/FCMOVORD extend the architectural
// FCMOV block into two unassigned slots.
const (
	FnCVTLQ    uint16 = 0x010
	FnCPYS     uint16 = 0x020
	FnCPYSN    uint16 = 0x021
	FnCPYSE    uint16 = 0x022
	FnMT_FPCR  uint16 = 0x024
	FnMF_FPCR  uint16 = 0x025
	FnFCMOVUN  uint16 = 0x026
	FnFCMOVORD uint16 = 0x027
	FnFCMOVEQ  uint16 = 0x02A
	FnFCMOVNE  uint16 = 0x02B
	FnFCMOVLT  uint16 = 0x02C
	FnFCMOVGE  uint16 = 0x02D
	FnFCMOVLE  uint16 = 0x02E
	FnFCMOVGT  uint16 = 0x02F
	FnCVTQL    uint16 = 0x030
)

// Jump sub-ops, bits [15:14] under opcode 0x1A.
const (
	JmpJMP          uint8 = 0
	JmpJSR          uint8 = 1
	JmpRET          uint8 = 2
	JmpJSRCoroutine uint8 = 3
)
