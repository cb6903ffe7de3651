// Package insts provides Alpha AXP instruction definitions and decoding.
//
// This package implements decoding of Alpha machine code into structured
// instruction representations. It covers the full primary opcode space:
//   - Operate formats: integer arithmetic/logical/shift/multiply (0x10-0x13)
//     and the media/count extensions (0x1C)
//   - Memory formats: loads, stores, load-locked/store-conditional,
//     LDA/LDAH, and the 0x18 function-selected barrier/prefetch group
//   - Floating point: IEEE S/T and VAX F/G/D operate formats (0x14-0x17)
//   - Control: conditional branches (0x30-0x3F), jumps (0x1A), CALL_PAL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x40220401) // ADDQ R1, R2, R1
//	fmt.Printf("Op: %s, Ra: %d, Rb: %d, Rc: %d\n", inst, inst.Ra, inst.Rb, inst.Rc)
//
// Every 32-bit word decodes to some Instruction. Words that do not map to
// an implemented operation carry ClassIllegal, never a defaulted one.
package insts

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown  Format = iota
	FormatPAL             // CALL_PAL: opcode | 26-bit function
	FormatMemory          // opcode | Ra | Rb | 16-bit displacement
	FormatMemoryFn        // opcode | Ra | Rb | 16-bit function (opcode 0x18)
	FormatJump            // opcode | Ra | Rb | 2-bit sub-op | 14-bit hint
	FormatBranch          // opcode | Ra | 21-bit displacement
	FormatOperate         // opcode | Ra | Rb/lit | 7-bit function | Rc
	FormatFPOp            // opcode | Fa | Fb | 11-bit function | Fc
)

// Class identifies the family executor an instruction dispatches to.
type Class uint8

// Instruction classes.
const (
	ClassIllegal   Class = iota
	ClassInteger         // arithmetic, logical, shift, multiply
	ClassLoadStore       // aligned loads/stores, LDA/LDAH
	ClassUnaligned       // LDQ_U/STQ_U
	ClassLLSC            // load-locked / store-conditional
	ClassBytes           // byte extract/insert/mask, ZAP, media ops
	ClassBits            // population counts, leading/trailing counts, bit extensions
	ClassFP              // IEEE and VAX floating point, FP transfers, FPCR
	ClassControl         // branches, jumps, conditional moves
	ClassMemOrder        // barriers, prefetch hints, RPCC, atomic read-modify-write
	ClassPal             // CALL_PAL
)

// ClassCount is the number of distinct instruction classes.
const ClassCount = int(ClassPal) + 1

var classNames = map[Class]string{
	ClassIllegal:   "illegal",
	ClassInteger:   "integer",
	ClassLoadStore: "load-store",
	ClassUnaligned: "unaligned",
	ClassLLSC:      "ll-sc",
	ClassBytes:     "bytes",
	ClassBits:      "bits",
	ClassFP:        "fp",
	ClassControl:   "control",
	ClassMemOrder:  "mem-order",
	ClassPal:       "pal",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "unknown"
}

// Instruction represents a decoded Alpha instruction.
type Instruction struct {
	Raw    uint32 // original instruction word
	Opcode uint8  // bits [31:26]
	Format Format // encoding format
	Class  Class  // dispatch family

	// Register fields. FP operates read Fa/Fb/Fc through the same slots.
	Ra uint8 // bits [25:21]
	Rb uint8 // bits [20:16], unused when HasLit
	Rc uint8 // bits [4:0] (operate formats only)

	// Literal operand (operate format, bit 12 set)
	HasLit bool
	Lit    uint8 // bits [20:13]

	// Function code: 7 bits for operate, 11 bits for FP operate,
	// 16 bits for the opcode 0x18 group.
	Fn uint16

	// Memory displacement, sign-extended from 16 bits.
	Disp int32

	// Branch displacement in instructions, sign-extended from 21 bits.
	BranchDisp int32

	// Jump fields (opcode 0x1A)
	JumpFn   uint8  // bits [15:14]: 0=JMP 1=JSR 2=RET 3=JSR_COROUTINE
	JumpHint uint16 // bits [13:0]

	// CALL_PAL function, bits [25:0].
	PalFn uint32
}
