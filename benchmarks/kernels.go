package benchmarks

import (
	"math"

	"github.com/sarchlab/axpsim/emu"
	"github.com/sarchlab/axpsim/insts"
)

// halt is CALL_PAL HALT, function 0 in every family's numbering.
func halt() uint32 {
	return insts.EncodePal(0)
}

// Kernels returns the standard benchmark set, one kernel per executor
// family the latency tables price differently.
func Kernels() []Benchmark {
	return []Benchmark{
		sumLoop(),
		fibonacci(),
		memoryStride(),
		functionCalls(),
		branchMix(),
		byteShuffle(),
		mulShift(),
		llscIncrement(),
		fpMixed(),
		atomicFetchAdd(),
	}
}

// CoreKernels returns the minimal set used for quick validation: a
// counted loop, a memory walker, and a branch-heavy kernel.
func CoreKernels() []Benchmark {
	return []Benchmark{
		sumLoop(),
		memoryStride(),
		branchMix(),
	}
}

// sumLoop sums 1..10 with a real counted loop.
func sumLoop() Benchmark {
	return Benchmark{
		Name:        "sum_loop",
		Description: "counted loop summing 1..10, measures loop overhead",
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDA, 1, 31, 10), // R1 = 10
			// loop:
			insts.EncodeOperate(insts.OpINTA, 0, 1, insts.FnADDQ, 0),  // R0 += R1
			insts.EncodeOperateLit(insts.OpINTA, 1, 1, insts.FnSUBQ, 1), // R1 -= 1
			insts.EncodeBranch(insts.OpBNE, 1, -3),
			halt(),
		},
		ExpectedR0: 55,
	}
}

// fibonacci iterates the Fibonacci recurrence ten times.
func fibonacci() Benchmark {
	return Benchmark{
		Name:        "fibonacci",
		Description: "10 Fibonacci steps, measures dependent-chain latency",
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDA, 1, 31, 1),  // R1 = 1
			insts.EncodeMemory(insts.OpLDA, 3, 31, 10), // R3 = 10
			// loop:
			insts.EncodeOperate(insts.OpINTA, 0, 1, insts.FnADDQ, 2),  // R2 = R0 + R1
			insts.EncodeOperate(insts.OpINTL, 31, 1, insts.FnBIS, 0),  // R0 = R1
			insts.EncodeOperate(insts.OpINTL, 31, 2, insts.FnBIS, 1),  // R1 = R2
			insts.EncodeOperateLit(insts.OpINTA, 3, 1, insts.FnSUBQ, 3), // R3 -= 1
			insts.EncodeBranch(insts.OpBNE, 3, -5),
			halt(),
		},
		ExpectedR0: 55, // F(10)
	}
}

// memoryStride stores eight quadwords at a fixed stride and sums them
// back. The pointer walks with LDA, the Alpha way to bump a register.
func memoryStride() Benchmark {
	return Benchmark{
		Name:        "memory_stride",
		Description: "8 store/load pairs at quadword stride, measures memory latency",
		Setup: func(engine *emu.Engine) {
			engine.CPU(0).WriteReg(4, 0x8000) // buffer base
		},
		Program: []uint32{
			insts.EncodeOperate(insts.OpINTL, 31, 4, insts.FnBIS, 1), // R1 = base
			insts.EncodeMemory(insts.OpLDA, 2, 31, 8),                // R2 = 8
			insts.EncodeMemory(insts.OpLDA, 3, 31, 1),                // R3 = 1
			// store loop:
			insts.EncodeMemory(insts.OpSTQ, 3, 1, 0),
			insts.EncodeOperateLit(insts.OpINTA, 3, 1, insts.FnADDQ, 3), // value++
			insts.EncodeMemory(insts.OpLDA, 1, 1, 8),                    // ptr += 8
			insts.EncodeOperateLit(insts.OpINTA, 2, 1, insts.FnSUBQ, 2),
			insts.EncodeBranch(insts.OpBNE, 2, -5),
			// reload and sum:
			insts.EncodeOperate(insts.OpINTL, 31, 4, insts.FnBIS, 1), // R1 = base
			insts.EncodeMemory(insts.OpLDA, 2, 31, 8),                // R2 = 8
			insts.EncodeMemory(insts.OpLDQ, 5, 1, 0),
			insts.EncodeOperate(insts.OpINTA, 0, 5, insts.FnADDQ, 0),
			insts.EncodeMemory(insts.OpLDA, 1, 1, 8),
			insts.EncodeOperateLit(insts.OpINTA, 2, 1, insts.FnSUBQ, 2),
			insts.EncodeBranch(insts.OpBNE, 2, -5),
			halt(),
		},
		ExpectedR0: 36, // 1+2+...+8
	}
}

// functionCalls issues five BSR/RET pairs to a one-instruction routine.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 BSR/RET pairs, measures call and return overhead",
		Program: []uint32{
			insts.EncodeBranch(insts.OpBSR, 26, 5), // -> add_one
			insts.EncodeBranch(insts.OpBSR, 26, 4),
			insts.EncodeBranch(insts.OpBSR, 26, 3),
			insts.EncodeBranch(insts.OpBSR, 26, 2),
			insts.EncodeBranch(insts.OpBSR, 26, 1),
			halt(),
			// add_one:
			insts.EncodeOperateLit(insts.OpINTA, 0, 1, insts.FnADDQ, 0),
			insts.EncodeJump(insts.JmpRET, 31, 26, 1),
		},
		ExpectedR0: 5,
	}
}

// branchMix runs sixteen iterations with a data-dependent inner branch,
// taken on odd counts only, to exercise the direction predictor.
func branchMix() Benchmark {
	return Benchmark{
		Name:        "branch_mix",
		Description: "16-iteration loop with an alternating inner branch",
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDA, 1, 31, 16), // R1 = 16
			// loop:
			insts.EncodeOperateLit(insts.OpINTL, 1, 1, insts.FnAND, 2), // R2 = R1 & 1
			insts.EncodeBranch(insts.OpBEQ, 2, 1),                      // skip on even
			insts.EncodeOperateLit(insts.OpINTA, 0, 1, insts.FnADDQ, 0),
			insts.EncodeOperateLit(insts.OpINTA, 1, 1, insts.FnSUBQ, 1),
			insts.EncodeBranch(insts.OpBNE, 1, -5),
			halt(),
		},
		ExpectedR0: 8, // odd counts in 16..1
	}
}

// byteShuffle combines byte extract, ZAPNOT, and population count.
func byteShuffle() Benchmark {
	return Benchmark{
		Name:        "byte_shuffle",
		Description: "EXTBL, ZAPNOT, and CTPOP over a packed quadword",
		Setup: func(engine *emu.Engine) {
			engine.CPU(0).WriteReg(1, 0x1122334455667788)
		},
		Program: []uint32{
			insts.EncodeOperateLit(insts.OpINTS, 1, 3, insts.FnEXTBL, 2),    // R2 = byte 3 = 0x55
			insts.EncodeOperateLit(insts.OpINTS, 1, 0x0F, insts.FnZAPNOT, 3), // R3 = low half
			insts.EncodeOperate(insts.OpFPTI, 31, 3, insts.FnCTPOP, 4),       // R4 = popcount
			insts.EncodeOperate(insts.OpINTA, 2, 4, insts.FnADDQ, 0),
			halt(),
		},
		// 0x55 + popcount(0x55667788) = 85 + 16
		ExpectedR0: 101,
	}
}

// mulShift multiplies and shifts, pricing the multiplier path.
func mulShift() Benchmark {
	return Benchmark{
		Name:        "mul_shift",
		Description: "MULQ followed by SLL, measures multiply latency",
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDA, 1, 31, 6),
			insts.EncodeMemory(insts.OpLDA, 2, 31, 7),
			insts.EncodeOperate(insts.OpINTM, 1, 2, insts.FnMULQ, 3),
			insts.EncodeOperateLit(insts.OpINTS, 3, 1, insts.FnSLL, 0),
			halt(),
		},
		ExpectedR0: 84,
	}
}

// llscIncrement performs an uncontended load-locked/store-conditional
// increment and reads the result back.
func llscIncrement() Benchmark {
	return Benchmark{
		Name:        "llsc_increment",
		Description: "LDQ_L/STQ_C increment of a memory word",
		Setup: func(engine *emu.Engine) {
			engine.Memory().Write64(0x9000, 41)
			engine.CPU(0).WriteReg(1, 0x9000)
		},
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDQ_L, 2, 1, 0),
			insts.EncodeOperateLit(insts.OpINTA, 2, 1, insts.FnADDQ, 3),
			insts.EncodeMemory(insts.OpSTQ_C, 3, 1, 0),
			insts.EncodeMemory(insts.OpLDQ, 0, 1, 0),
			halt(),
		},
		ExpectedR0: 42,
	}
}

// fpMixed loads two doubles, combines them, and converts the result to
// an integer through the FP register file.
func fpMixed() Benchmark {
	return Benchmark{
		Name:        "fp_mixed",
		Description: "LDT, ADDT, MULT, CVTTQ, FTOIT chain",
		Setup: func(engine *emu.Engine) {
			engine.Memory().Write64(0xA000, math.Float64bits(1.5))
			engine.Memory().Write64(0xA008, math.Float64bits(2.25))
			engine.CPU(0).WriteReg(1, 0xA000)
		},
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDT, 1, 1, 0),
			insts.EncodeMemory(insts.OpLDT, 2, 1, 8),
			insts.EncodeFPOp(insts.OpFLTI, 1, 2, insts.FPADDT|insts.FPRndNormal, 3),
			insts.EncodeFPOp(insts.OpFLTI, 3, 2, insts.FPMULT|insts.FPRndNormal, 4),
			insts.EncodeFPOp(insts.OpFLTI, 31, 4, insts.FPCVTTQ|insts.FPRndNormal, 5),
			insts.EncodeFPOp(insts.OpFPTI, 5, 31, insts.FnFTOIT, 0),
			halt(),
		},
		// (1.5 + 2.25) * 2.25 = 8.4375, rounds to 8
		ExpectedR0: 8,
	}
}

// atomicFetchAdd bumps a counter four times with FAADDQ and loads the
// final value.
func atomicFetchAdd() Benchmark {
	return Benchmark{
		Name:        "atomic_fetch_add",
		Description: "4 FAADDQ read-modify-writes on one counter",
		Setup: func(engine *emu.Engine) {
			engine.CPU(0).WriteReg(1, 0xB000) // counter address
			engine.CPU(0).WriteReg(3, 1)      // addend
		},
		Program: []uint32{
			insts.EncodeMemory(insts.OpLDA, 2, 31, 4), // R2 = 4
			// loop:
			insts.EncodeOperate(insts.OpFPTI, 1, 3, insts.FnFAADDQ, 4),
			insts.EncodeOperateLit(insts.OpINTA, 2, 1, insts.FnSUBQ, 2),
			insts.EncodeBranch(insts.OpBNE, 2, -3),
			insts.EncodeMemory(insts.OpLDQ, 0, 1, 0),
			halt(),
		},
		ExpectedR0: 4,
	}
}
